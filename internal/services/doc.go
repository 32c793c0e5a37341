// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp batch IDs, item labels, stage names, attempt
//     numbers, and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that let the runner tell
//     permanent failures from retryable ones and batch-fatal errors from
//     per-item errors.
//
// Use these helpers when wiring new stage adapters so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
