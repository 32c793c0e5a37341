// Package logging assembles structured slog loggers and formatting helpers used
// across dubflow.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code automatically
// tags log lines with batch IDs, item labels, stages, attempts, and
// correlation IDs. The package also provides a no-op logger for tests.
package logging
