package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxNameRunes bounds folder names derived from video titles.
const maxNameRunes = 120

// MaxSegmentBytes is the longest single path segment most filesystems accept.
const MaxSegmentBytes = 255

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed and control runes become spaces. The result is
// trimmed and capped in both runes and UTF-8 bytes so it fits one path segment.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, fileNameReplacer.Replace(name))
	name = strings.Join(strings.Fields(name), " ")
	name = TruncateRunes(name, maxNameRunes)
	name = TruncateBytes(name, MaxSegmentBytes)
	return strings.Trim(name, " .")
}

// TruncateRunes shortens s to at most n runes without splitting a character.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// TruncateBytes shortens s to at most n bytes, backing off to the previous
// rune boundary so the result stays valid UTF-8.
func TruncateBytes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
