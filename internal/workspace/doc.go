// Package workspace guards a video root folder with an advisory file lock so
// concurrent dubflow processes never write into the same item folders.
package workspace
