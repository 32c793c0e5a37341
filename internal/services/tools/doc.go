// Package tools adapts the Python tools package to the stage interfaces.
//
// Each stage runs `python -m <package>.<module> --folder <dir> ...` in the
// configured working directory. A module reports its outcome as the last
// JSON line on stdout:
//
//	{"status":"ok","artifact":"<path>","summary":"<text>"}
//
// Any other status, a non-zero exit, or a missing result line fails the stage.
// The same client prepares and releases model backends via init_backend.
package tools
