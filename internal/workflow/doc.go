// Package workflow drives videos through the dubbing pipeline.
//
// A Runner takes one work item through the six stages (download, separate,
// transcribe, translate, synthesize, composite) in fixed order. A failed stage
// ends the attempt; the whole sequence is then retried with exponential
// backoff up to the configured attempt limit, either from the first stage or,
// when resume mode is enabled, from the stage that failed. Folder resolution
// failures are permanent and never retried. Per-stage semaphores bound how
// many items may be inside a non-reentrant backend at once.
//
// The Coordinator is the batch entry point. It normalizes the user input,
// takes the local-file fast path for a single .mp4, otherwise resolves the
// sources into work items, prepares the required backends once and fans the
// items out to Runners (sequentially or on a bounded worker pool). Results are
// folded into a Report, recorded in the history ledger and announced through
// the notification service. No panic escapes DoEverything.
package workflow
