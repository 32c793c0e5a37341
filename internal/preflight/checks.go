package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"dubflow/internal/config"
	"dubflow/internal/deps"
	"dubflow/internal/services/llm"
)

// CheckLLM verifies that the LLM API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, name string, cfg config.LLMConfig) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing (set llm.api_key or OPENAI_API_KEY)"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	}, llm.WithRetryMaxAttempts(1))
	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckToolsPackage verifies the Python package implementing the stages can
// be imported from the configured working directory.
func CheckToolsPackage(cfg *config.Config) Result {
	const name = "Stage tools"
	workDir := cfg.Tools.WorkDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("resolve working directory: %v", err)}
		}
		workDir = wd
	}
	pkgDir := filepath.Join(workDir, filepath.FromSlash(strings.ReplaceAll(cfg.Tools.Package, ".", "/")))
	info, err := os.Stat(pkgDir)
	if err != nil || !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: package %q not found)", pkgDir, cfg.Tools.Package)}
	}
	if _, err := os.Stat(filepath.Join(pkgDir, "__init__.py")); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: missing __init__.py)", pkgDir)}
	}
	return Result{Name: name, Passed: true, Detail: pkgDir}
}

// CheckSystemDeps evaluates the external programs the stages shell out to.
// Both `dubflow run` and `dubflow backends` use this list. LLM checks are not
// included here because they need the network.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "Python",
			Command:     cfg.PythonBinary(),
			Description: "Runs the separation, ASR, TTS and composition tools",
			VersionArgs: []string{"--version"},
		},
		{
			Name:        "yt-dlp",
			Command:     cfg.YtDlpBinary(),
			Description: "Required for resolving and downloading remote videos",
			VersionArgs: []string{"--version"},
		},
	}
	results := deps.CheckBinaries(ctx, requirements)
	return append(results, deps.CheckFFmpegForYtDlp(cfg.FFmpegBinary(), cfg.YtDlpBinary()))
}

// summarizeLLMError produces a human-readable summary for LLM health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (LLM API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (LLM API unreachable)"
	}
	return err.Error()
}
