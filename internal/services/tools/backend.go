package tools

import (
	"context"
	"fmt"

	"dubflow/internal/backend"
	"dubflow/internal/logging"
	"dubflow/internal/services"
)

// Prepare warms one model backend through the init_backend module. The
// subprocess caches and test-loads the backend's weights, then exits; stages
// run as separate subprocesses and load from that cache.
func (c *Client) Prepare(ctx context.Context, kind backend.Kind) error {
	args := []string{"-m", c.Module(ModuleInitBackend), string(kind)}
	if _, err := c.run(ctx, c.cfg.WorkDir, c.cfg.Python, args...); err != nil {
		return services.Wrap(services.ErrInit, "backend", "prepare", fmt.Sprintf("load %s", kind), err)
	}
	logging.WithContext(ctx, c.logger).Debug("backend warmed", logging.String(logging.FieldBackend, string(kind)))
	return nil
}

// Release frees every backend the tools process holds.
func (c *Client) Release(ctx context.Context) error {
	args := []string{"-m", c.Module(ModuleInitBackend), "--release"}
	if _, err := c.run(ctx, c.cfg.WorkDir, c.cfg.Python, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, "backend", "release", "release backends", err)
	}
	return nil
}

var (
	_ backend.Preparer = (*Client)(nil)
	_ backend.Releaser = (*Client)(nil)
)
