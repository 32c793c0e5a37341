package workflow

import (
	"os"
	"path/filepath"
	"strings"
)

const localVideoExt = ".mp4"

var inputSeparators = strings.NewReplacer(" ", "", "，", "\n", ",", "\n")

// NormalizeInput removes spaces, treats commas (ASCII or full-width) as line
// breaks and returns the non-empty tokens.
func NormalizeInput(input string) []string {
	normalized := inputSeparators.Replace(input)
	var tokens []string
	for _, line := range strings.Split(normalized, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			tokens = append(tokens, line)
		}
	}
	return tokens
}

// isLocalVideo reports whether tokens denote the single-file fast path.
func isLocalVideo(tokens []string) bool {
	return len(tokens) == 1 && strings.HasSuffix(strings.ToLower(tokens[0]), localVideoExt)
}

// localSource returns the on-disk path for a local video token. A token that
// does not exist as given is looked up relative to root.
func localSource(root, token string) string {
	if _, err := os.Stat(token); err == nil {
		return token
	}
	if filepath.IsAbs(token) {
		return token
	}
	return filepath.Join(root, token)
}

// localFolderName is the working folder name for a local video.
func localFolderName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
