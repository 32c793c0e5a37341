package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// CheckFFmpegForYtDlp reports the FFmpeg binary yt-dlp will use to merge the
// separate video and audio formats it downloads.
//
// yt-dlp prefers an ffmpeg binary sitting next to its own executable and falls
// back to PATH. An explicitly configured ffmpeg path wins over both. This
// mirrors that order so status output matches what a download will use.
func CheckFFmpegForYtDlp(ffmpegCommand, ytdlpCommand string) Status {
	result := Status{
		Name:        "FFmpeg",
		Description: "Required for format merging and video composition",
	}

	configured := strings.TrimSpace(ffmpegCommand)
	if configured != "" && strings.ContainsRune(configured, os.PathSeparator) {
		if info, err := os.Stat(configured); err == nil && isExecutable(info) {
			result.Command = configured
			result.Available = true
			return result
		}
		result.Command = configured
		result.Detail = fmt.Sprintf("binary %q not found", configured)
		return result
	}

	ytdlpBinary := strings.TrimSpace(ytdlpCommand)
	if ytdlpBinary != "" {
		if resolved, err := exec.LookPath(ytdlpBinary); err == nil {
			if candidate, ok := ffmpegSidecarCandidate(resolved); ok {
				if info, statErr := os.Stat(candidate); statErr == nil && isExecutable(info) {
					result.Command = candidate
					result.Available = true
					return result
				}
			}
		}
	}

	ffmpegName := configured
	if ffmpegName == "" {
		ffmpegName = "ffmpeg"
	}
	if ffmpegPath, err := exec.LookPath(ffmpegName); err == nil {
		result.Command = ffmpegPath
		result.Available = true
		return result
	}

	result.Command = ffmpegName
	result.Available = false
	result.Detail = fmt.Sprintf("binary %q not found", ffmpegName)
	return result
}

func ffmpegSidecarCandidate(ytdlpPath string) (string, bool) {
	if ytdlpPath == "" {
		return "", false
	}
	dir := filepath.Dir(ytdlpPath)
	return filepath.Join(dir, executableName("ffmpeg")), true
}

func executableName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
