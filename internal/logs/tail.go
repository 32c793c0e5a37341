package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"dubflow/internal/logging"
)

// DefaultPollInterval is how often Follow checks the file for new lines.
const DefaultPollInterval = 250 * time.Millisecond

// Matcher selects the lines to keep. A nil Matcher keeps every line.
type Matcher func(line string) bool

// Page is a run of log lines and the byte offset just past the last one read.
type Page struct {
	Lines  []string
	Offset int64
}

// BatchMatcher keeps lines tagged with a batch ID starting with prefix, in
// either the console or the JSON log format.
func BatchMatcher(prefix string) Matcher {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil
	}
	console := logging.FieldBatchID + "=" + prefix
	jsonKey := `"` + logging.FieldBatchID + `":"` + prefix
	return func(line string) bool {
		return strings.Contains(line, console) || strings.Contains(line, jsonKey)
	}
}

// Last returns up to limit matching lines from the end of the file. A
// missing file yields an empty page. A non-positive limit returns no lines
// but still reports the end offset, so callers can follow from there.
func Last(path string, limit int, match Matcher) (Page, error) {
	file, err := open(path)
	if err != nil || file == nil {
		return Page{}, err
	}
	defer file.Close()

	var ring []string
	if limit > 0 {
		ring = make([]string, 0, limit)
	}
	err = scanLines(file, func(line string) {
		if limit <= 0 || (match != nil && !match(line)) {
			return
		}
		if len(ring) == limit {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, line)
	})
	if err != nil {
		return Page{}, err
	}
	offset, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return Page{}, fmt.Errorf("determine log offset: %w", err)
	}
	return Page{Lines: ring, Offset: offset}, nil
}

// Since returns the matching lines appended after offset. When the file is
// shorter than offset it was truncated or rotated and reading restarts at
// the beginning.
func Since(path string, offset int64, match Matcher) (Page, error) {
	file, err := open(path)
	if err != nil || file == nil {
		return Page{}, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Page{}, fmt.Errorf("stat log file: %w", err)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return Page{}, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReader(file)
	page := Page{Offset: offset}
	for {
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			// A partial trailing line is left for the next call.
			return page, nil
		}
		if err != nil {
			return page, fmt.Errorf("read log file: %w", err)
		}
		page.Offset += int64(len(line))
		line = strings.TrimRight(line, "\r\n")
		if match == nil || match(line) {
			page.Lines = append(page.Lines, line)
		}
	}
}

// Follow polls the file from offset and passes each new matching line to
// emit until ctx is cancelled. Cancellation is not reported as an error.
func Follow(ctx context.Context, path string, offset int64, match Matcher, interval time.Duration, emit func(string)) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		page, err := Since(path, offset, match)
		if err != nil {
			return err
		}
		for _, line := range page.Lines {
			emit(line)
		}
		offset = page.Offset

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func open(path string) (*os.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("log path %q is a directory", path)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return file, nil
}

func scanLines(r io.Reader, fn func(string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fn(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read log file: %w", err)
	}
	return nil
}
