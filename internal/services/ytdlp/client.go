package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"dubflow/internal/fileutil"
	"dubflow/internal/logging"
	"dubflow/internal/services"
	"dubflow/internal/stage"
	"dubflow/internal/textutil"
)

// DefaultBinary is used when no yt-dlp path is configured.
const DefaultBinary = "yt-dlp"

// VideoFileName is the canonical name of the downloaded video in an item
// folder.
const VideoFileName = "download.mp4"

// CommandRunner executes name with args and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Client resolves and downloads videos with yt-dlp.
type Client struct {
	binary string
	ffmpeg string
	run    CommandRunner
	logger *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithCommandRunner replaces subprocess execution (for testing).
func WithCommandRunner(runner CommandRunner) Option {
	return func(c *Client) {
		if runner != nil {
			c.run = runner
		}
	}
}

// WithFFmpeg points yt-dlp at a specific ffmpeg for merging formats.
func WithFFmpeg(path string) Option {
	return func(c *Client) {
		c.ffmpeg = strings.TrimSpace(path)
	}
}

// New constructs a client for binary.
func New(binary string, logger *slog.Logger, opts ...Option) *Client {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = DefaultBinary
	}
	c := &Client{
		binary: binary,
		run:    execRunner,
		logger: logging.NewComponentLogger(logger, "ytdlp"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// info is the subset of yt-dlp's JSON metadata the pipeline needs.
type info struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	WebpageURL string `json:"webpage_url"`
	Uploader   string `json:"uploader"`
	Channel    string `json:"channel"`
	UploadDate string `json:"upload_date"`
}

func (i info) item() stage.WorkItem {
	source := i.WebpageURL
	if source == "" {
		source = i.URL
	}
	uploader := i.Uploader
	if uploader == "" {
		uploader = i.Channel
	}
	return stage.WorkItem{
		Kind:       stage.KindRemote,
		Title:      strings.TrimSpace(i.Title),
		URL:        source,
		ID:         i.ID,
		Uploader:   strings.TrimSpace(uploader),
		UploadDate: strings.TrimSpace(i.UploadDate),
	}
}

// Resolve expands each URL into at most count items, in input order.
// Playlists and channels contribute their first count entries.
func (c *Client) Resolve(ctx context.Context, urls []string, count int) ([]stage.WorkItem, error) {
	logger := logging.WithContext(ctx, c.logger)
	var items []stage.WorkItem
	for _, url := range urls {
		args := []string{"--dump-json", "--skip-download", "--no-warnings", "--ignore-errors"}
		if count > 0 {
			args = append(args, "--playlist-end", strconv.Itoa(count))
		}
		args = append(args, url)

		out, err := c.run(ctx, c.binary, args...)
		if err != nil && len(bytes.TrimSpace(out)) == 0 {
			return nil, fmt.Errorf("resolve %s: %w", url, err)
		}
		resolved, err := parseInfoLines(out)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", url, err)
		}
		logger.Info("resolved source",
			logging.String("url", url),
			logging.Int("videos", len(resolved)),
		)
		items = append(items, resolved...)
	}
	return items, nil
}

func parseInfoLines(out []byte) ([]stage.WorkItem, error) {
	var items []stage.WorkItem
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var meta info
		if err := json.Unmarshal(line, &meta); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		items = append(items, meta.item())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	return items, nil
}

// TargetFolder returns <root>/<uploader>/<upload_date> <title>. A missing
// title or upload date is a miss; a missing uploader becomes "Unknown". The
// dated segment is capped at textutil.MaxSegmentBytes.
func (c *Client) TargetFolder(item stage.WorkItem, root string) (string, bool) {
	title := textutil.SanitizeFileName(item.Title)
	date := strings.TrimSpace(item.UploadDate)
	if title == "" || date == "" {
		return "", false
	}
	uploader := textutil.SanitizeFileName(item.Uploader)
	if uploader == "" {
		uploader = "Unknown"
	}
	folder := strings.TrimRight(textutil.TruncateBytes(date+" "+title, textutil.MaxSegmentBytes), " .")
	return filepath.Join(root, uploader, folder), true
}

// Download fetches the item's video into its folder as download.mp4. An
// existing non-empty file is reused.
func (c *Client) Download(ctx context.Context, item stage.WorkItem, root string, resolution string) stage.Result {
	folder, ok := c.TargetFolder(item, root)
	if !ok {
		return stage.Failed(services.Wrap(services.ErrFolderResolution, string(stage.NameDownload), "target folder",
			"missing title or upload date", nil))
	}
	dest := filepath.Join(folder, VideoFileName)
	logger := logging.WithContext(ctx, c.logger)
	if fileutil.FileExists(dest) {
		logger.Info("video already downloaded",
			logging.String(logging.FieldEventType, "download_skip"),
			logging.String("path", dest),
		)
		return stage.Ok(dest)
	}
	if item.URL == "" {
		return stage.Failed(services.Wrap(services.ErrDownload, string(stage.NameDownload), "download", "item has no URL", nil))
	}
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return stage.Failed(services.Wrap(services.ErrDownload, string(stage.NameDownload), "create folder", folder, err))
	}

	args := c.downloadArgs(item.URL, folder, resolution)
	if _, err := c.run(ctx, c.binary, args...); err != nil {
		return stage.Failed(services.Wrap(services.ErrDownload, string(stage.NameDownload), "yt-dlp", item.Label(), err))
	}
	if !fileutil.FileExists(dest) {
		return stage.Failed(services.Wrap(services.ErrDownload, string(stage.NameDownload), "verify",
			"yt-dlp produced no "+VideoFileName, nil))
	}
	logger.Info("video downloaded",
		logging.String(logging.FieldEventType, "download_complete"),
		logging.String("path", dest),
	)
	return stage.Ok(dest)
}

func (c *Client) downloadArgs(url, folder, resolution string) []string {
	format := "bestvideo+bestaudio/best"
	if height := Height(resolution); height > 0 {
		format = fmt.Sprintf("bestvideo[height<=%d]+bestaudio/best[height<=%d]", height, height)
	}
	args := []string{
		"--no-playlist",
		"--no-warnings",
		"-f", format,
		"--merge-output-format", "mp4",
		"-o", filepath.Join(folder, "download.%(ext)s"),
	}
	if c.ffmpeg != "" {
		args = append(args, "--ffmpeg-location", c.ffmpeg)
	}
	return append(args, url)
}

// Height parses "1080p" style resolutions; it returns 0 when unparseable.
func Height(resolution string) int {
	value := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(resolution)), "p")
	height, err := strconv.Atoi(value)
	if err != nil || height < 0 {
		return 0
	}
	return height
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), fmt.Errorf("%s: %w: %s", name, err, textutil.TruncateRunes(strings.TrimSpace(stderr.String()), 400))
	}
	return stdout.Bytes(), nil
}

var (
	_ stage.SourceResolver = (*Client)(nil)
	_ stage.Downloader     = (*Client)(nil)
)
