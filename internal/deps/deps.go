package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// versionProbeTimeout bounds a single "--version" call.
const versionProbeTimeout = 5 * time.Second

// Requirement defines an external program dubflow relies on. When
// VersionArgs is set the resolved binary is run with them and the first
// output line is reported as its version.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	VersionArgs []string
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Path        string
	Version     string
	Detail      string
}

// Summary is the one-line form used by status output: the resolved path and
// version when available, otherwise the failure detail.
func (s Status) Summary() string {
	if !s.Available {
		return s.Detail
	}
	parts := []string{s.Path}
	if s.Path == "" {
		parts[0] = s.Command
	}
	if s.Version != "" {
		parts = append(parts, "("+s.Version+")")
	}
	return strings.Join(parts, " ")
}

// CheckBinaries resolves every requirement on PATH and probes versions.
func CheckBinaries(ctx context.Context, requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		status := Status{
			Name:        req.Name,
			Command:     strings.TrimSpace(req.Command),
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch path, err := exec.LookPath(status.Command); {
		case status.Command == "":
			status.Detail = "command not configured"
		case err != nil:
			status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		default:
			status.Available = true
			status.Path = path
			if len(req.VersionArgs) > 0 {
				status.Version = probeVersion(ctx, path, req.VersionArgs)
			}
		}
		results = append(results, status)
	}
	return results
}

// probeVersion returns the first non-blank output line, or "" when the
// binary fails or prints nothing.
func probeVersion(ctx context.Context, path string, args []string) string {
	ctx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, path, args...).CombinedOutput()
	if err != nil {
		return ""
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line
		}
	}
	return ""
}
