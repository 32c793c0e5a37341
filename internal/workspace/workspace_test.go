package workspace_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"dubflow/internal/logging"
	"dubflow/internal/stage"
	"dubflow/internal/workflow"
	"dubflow/internal/workspace"
)

type recordingRunner struct {
	roots []string
	inner *workspace.Workspace
	err   error
}

func (r *recordingRunner) DoEverything(_ context.Context, root, _ string, _ stage.Params) workflow.Report {
	r.roots = append(r.roots, root)
	if r.inner != nil {
		r.err = r.inner.Acquire()
	}
	return workflow.Report{Summary: "成功: 1\n失败: 0"}
}

func TestOpenCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "videos")
	ws, err := workspace.Open(root, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if ws.Root() != root {
		t.Fatalf("root = %q, want %q", ws.Root(), root)
	}
	if ws.LockPath() != filepath.Join(root, workspace.LockFileName) {
		t.Fatalf("lock path = %q", ws.LockPath())
	}
	if _, err := workspace.Open("  ", logging.NewNop()); err == nil {
		t.Fatal("expected error for empty root")
	}
}

func TestRunHoldsLockForBatch(t *testing.T) {
	root := t.TempDir()
	ws, err := workspace.Open(root, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	other, err := workspace.Open(root, logging.NewNop())
	if err != nil {
		t.Fatalf("Open other: %v", err)
	}

	runner := &recordingRunner{inner: other}
	report, err := ws.Run(context.Background(), runner, "https://example.com/a", stage.Params{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Summary != "成功: 1\n失败: 0" {
		t.Fatalf("summary = %q", report.Summary)
	}
	if len(runner.roots) != 1 || runner.roots[0] != root {
		t.Fatalf("runner roots = %v", runner.roots)
	}
	if !errors.Is(runner.err, workspace.ErrBusy) {
		t.Fatalf("second workspace should be busy during the batch, got %v", runner.err)
	}

	// Released after the batch.
	if err := other.Acquire(); err != nil {
		t.Fatalf("Acquire after batch: %v", err)
	}
	other.Release()
}

func TestAcquireTwiceInSameWorkspace(t *testing.T) {
	ws, err := workspace.Open(t.TempDir(), logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := ws.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer ws.Release()
	if err := ws.Acquire(); err == nil {
		t.Fatal("expected error on re-acquire")
	}
}
