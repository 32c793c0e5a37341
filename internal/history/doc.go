// Package history records every batch run and the outcome of each video in a
// local SQLite database so operators can review past runs with
// `dubflow history`.
package history
