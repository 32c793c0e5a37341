// Package logs reads the dubflow log file for the `dubflow logs` command:
// the last N lines, lines appended since an offset, and a polling follow
// mode. Lines can be narrowed to a single batch.
package logs
