// Package textutil sanitizes video titles and uploader names into path
// segments that are safe on every filesystem dubflow targets.
package textutil
