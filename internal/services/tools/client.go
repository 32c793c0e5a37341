package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"dubflow/internal/logging"
	"dubflow/internal/services"
	"dubflow/internal/stage"
	"dubflow/internal/textutil"
)

// Default settings used when the configuration leaves a field blank.
const (
	DefaultPython  = "python"
	DefaultPackage = "tools"
)

// Stage modules under the tools package.
const (
	ModuleSeparate    = "step010_demucs_vr"
	ModuleTranscribe  = "step020_asr"
	ModuleTranslate   = "step030_translation"
	ModuleSynthesize  = "step040_tts"
	ModuleComposite   = "step050_synthesize_video"
	ModuleInitBackend = "init_backend"
)

const statusOK = "ok"

// CommandRunner executes name with args inside dir and returns its stdout.
// Implementations include stderr in the returned error.
type CommandRunner func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

// Config locates the tools package.
type Config struct {
	Python       string
	Package      string
	WorkDir      string
	StageTimeout time.Duration
}

// Client runs tool modules as subprocesses.
type Client struct {
	cfg    Config
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

// New constructs a client. Blank fields fall back to the defaults.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Client {
	if strings.TrimSpace(cfg.Python) == "" {
		cfg.Python = DefaultPython
	}
	if strings.TrimSpace(cfg.Package) == "" {
		cfg.Package = DefaultPackage
	}
	c := &Client{
		cfg:    cfg,
		run:    execRunner,
		logger: logging.NewComponentLogger(logger, "tools"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Module returns the dotted module path for name.
func (c *Client) Module(name string) string {
	return c.cfg.Package + "." + name
}

// response is the final JSON line a tool module prints.
type response struct {
	Status   string `json:"status"`
	Artifact string `json:"artifact"`
	Summary  string `json:"summary"`
	Error    string `json:"error"`
}

// invoke runs one stage module against folder and converts its reply into a
// stage result tagged with marker on failure.
func (c *Client) invoke(ctx context.Context, name stage.Name, marker error, module, folder string, args []string) stage.Result {
	if strings.TrimSpace(folder) == "" {
		return stage.Failed(services.Wrap(services.ErrConfiguration, string(name), "invoke", "folder required", nil))
	}
	if c.cfg.StageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.StageTimeout)
		defer cancel()
	}

	full := append([]string{"-m", c.Module(module), "--folder", folder}, args...)
	logger := logging.WithContext(ctx, c.logger)
	logger.Debug("running tool module",
		logging.String(logging.FieldStage, string(name)),
		logging.String("module", c.Module(module)),
		logging.Strings("args", full),
	)

	start := time.Now()
	out, err := c.run(ctx, c.cfg.WorkDir, c.cfg.Python, full...)
	if err != nil {
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return stage.Failed(services.Wrap(marker, string(name), module, "tool timed out", err))
		}
		return stage.Failed(services.Wrap(marker, string(name), module, "tool failed", err))
	}
	resp, err := parseResponse(out)
	if err != nil {
		return stage.Failed(services.Wrap(services.ErrExternalTool, string(name), module, "unreadable tool output", err))
	}
	if resp.Status != statusOK {
		msg := strings.TrimSpace(resp.Error)
		if msg == "" {
			msg = "tool reported status " + resp.Status
		}
		return stage.Failed(services.Wrap(marker, string(name), module, msg, nil))
	}

	logger.Debug("tool module finished",
		logging.String(logging.FieldStage, string(name)),
		logging.String("artifact", resp.Artifact),
		logging.Duration("elapsed", time.Since(start)),
	)
	return stage.Result{Artifact: resp.Artifact, Summary: resp.Summary}
}

// parseResponse decodes the last JSON object line of out. Tools may print
// progress lines before it.
func parseResponse(out []byte) (response, error) {
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var resp response
		if err := json.Unmarshal(line, &resp); err != nil {
			return response{}, fmt.Errorf("decode %q: %w", textutil.TruncateRunes(string(line), 120), err)
		}
		return resp, nil
	}
	return response{}, fmt.Errorf("no JSON result in output %q", textutil.TruncateRunes(string(out), 120))
}

func execRunner(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), fmt.Errorf("%s: %w: %s", name, err, textutil.TruncateRunes(strings.TrimSpace(stderr.String()), 400))
	}
	return stdout.Bytes(), nil
}
