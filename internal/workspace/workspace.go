package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"dubflow/internal/logging"
	"dubflow/internal/stage"
	"dubflow/internal/workflow"
)

// LockFileName is created at the root of every workspace.
const LockFileName = ".dubflow.lock"

// ErrBusy reports that another process is running a batch in the same root.
var ErrBusy = errors.New("another dubflow batch is already running in this workspace")

// BatchRunner executes one batch under a root folder.
type BatchRunner interface {
	DoEverything(ctx context.Context, root, input string, params stage.Params) workflow.Report
}

// Workspace is a video root folder guarded by an advisory file lock so only
// one batch writes into it at a time.
type Workspace struct {
	root     string
	lockPath string
	lock     *flock.Flock
	logger   *slog.Logger

	held atomic.Bool
}

// Open prepares root for use. The directory is created when missing.
func Open(root string, logger *slog.Logger) (*Workspace, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("workspace root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	lockPath := filepath.Join(abs, LockFileName)
	return &Workspace{
		root:     abs,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		logger:   logging.NewComponentLogger(logger, "workspace"),
	}, nil
}

// Root returns the absolute workspace path.
func (w *Workspace) Root() string {
	return w.root
}

// LockPath returns the path of the lock file.
func (w *Workspace) LockPath() string {
	return w.lockPath
}

// Acquire takes the workspace lock without blocking.
func (w *Workspace) Acquire() error {
	if w.held.Load() {
		return errors.New("workspace lock already held by this process")
	}
	ok, err := w.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w (lock: %s)", ErrBusy, w.lockPath)
	}
	w.held.Store(true)
	w.logger.Debug("workspace lock acquired", logging.String("lock", w.lockPath))
	return nil
}

// Release drops the workspace lock if held.
func (w *Workspace) Release() {
	if !w.held.Swap(false) {
		return
	}
	if err := w.lock.Unlock(); err != nil {
		w.logger.Warn("failed to release workspace lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "workspace_unlock_failed"),
			logging.String(logging.FieldErrorHint, "remove the lock file if no dubflow process is running"),
			logging.String(logging.FieldImpact, "next batch in this root may report it as busy"),
		)
	}
}

// Run holds the lock for the duration of one batch.
func (w *Workspace) Run(ctx context.Context, runner BatchRunner, input string, params stage.Params) (workflow.Report, error) {
	if runner == nil {
		return workflow.Report{}, errors.New("batch runner is required")
	}
	if err := w.Acquire(); err != nil {
		return workflow.Report{}, err
	}
	defer w.Release()
	return runner.DoEverything(ctx, w.root, input, params), nil
}
