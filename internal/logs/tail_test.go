package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"dubflow/internal/logs"
)

func writeLog(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append log: %v", err)
	}
}

func TestLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dubflow.log")
	writeLog(t, path, "a\nb\nc\n")

	page, err := logs.Last(path, 2, nil)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if !slices.Equal(page.Lines, []string{"b", "c"}) {
		t.Fatalf("unexpected lines: %#v", page.Lines)
	}
	if page.Offset != 6 {
		t.Fatalf("offset = %d, want 6", page.Offset)
	}
}

func TestLastMissingFile(t *testing.T) {
	page, err := logs.Last(filepath.Join(t.TempDir(), "none.log"), 10, nil)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if len(page.Lines) != 0 || page.Offset != 0 {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestBatchMatcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dubflow.log")
	writeLog(t, path, ""+
		"2026-01-01T00:00:00Z INFO coordinator: batch started batch_id=abc123-1 items=2\n"+
		"2026-01-01T00:00:01Z INFO coordinator: batch started batch_id=def456-2 items=1\n"+
		`{"msg":"stage failed","batch_id":"abc123-1"}`+"\n"+
		"2026-01-01T00:00:02Z INFO backend: backends ready prepared=3\n")

	page, err := logs.Last(path, 10, logs.BatchMatcher("abc123"))
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if len(page.Lines) != 2 {
		t.Fatalf("expected 2 matching lines, got %#v", page.Lines)
	}
	if logs.BatchMatcher("  ") != nil {
		t.Fatal("blank prefix should match everything")
	}
}

func TestSinceHandlesTruncationAndPartialLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dubflow.log")
	writeLog(t, path, "one\ntwo\n")

	page, err := logs.Since(path, 4, nil)
	if err != nil {
		t.Fatalf("Since: %v", err)
	}
	if !slices.Equal(page.Lines, []string{"two"}) || page.Offset != 8 {
		t.Fatalf("unexpected page %+v", page)
	}

	appendLog(t, path, "thr")
	page, err = logs.Since(path, page.Offset, nil)
	if err != nil {
		t.Fatalf("Since: %v", err)
	}
	if len(page.Lines) != 0 || page.Offset != 8 {
		t.Fatalf("partial line should be held back: %+v", page)
	}

	writeLog(t, path, "new\n")
	page, err = logs.Since(path, 8, nil)
	if err != nil {
		t.Fatalf("Since: %v", err)
	}
	if !slices.Equal(page.Lines, []string{"new"}) {
		t.Fatalf("expected restart after truncation, got %+v", page)
	}
}

func TestFollowEmitsAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dubflow.log")
	writeLog(t, path, "start\n")

	start, err := logs.Last(path, 1, nil)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	var mu sync.Mutex
	var got []string
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, start.Offset, nil, 10*time.Millisecond, func(line string) {
			mu.Lock()
			got = append(got, line)
			mu.Unlock()
		})
	}()

	appendLog(t, path, "later\n")

	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("follow did not emit appended line")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Follow: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(got, []string{"later"}) {
		t.Fatalf("unexpected lines %#v", got)
	}
}
