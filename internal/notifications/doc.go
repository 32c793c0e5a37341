// Package notifications delivers batch events via ntfy.
//
// The default implementation publishes to the topic configured in
// config.toml and degrades to a no-op when notifications are disabled. Events
// cover batch start and completion, per-video failures, and batch-fatal errors
// so the coordinator can report progress without duplicating HTTP glue.
package notifications
