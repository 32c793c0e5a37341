package preflight

import (
	"context"
	"strings"

	"dubflow/internal/config"
	"dubflow/internal/stage"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Network checks only run for the features that need them.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Workspace root", cfg.Paths.WorkspaceRoot))
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	results = append(results, CheckToolsPackage(cfg))

	for _, dep := range CheckSystemDeps(ctx, cfg) {
		if dep.Optional {
			continue
		}
		results = append(results, Result{Name: dep.Name, Passed: dep.Available, Detail: dep.Summary()})
	}

	if usesLLM(cfg.Translation.Method) {
		results = append(results, CheckLLM(ctx, "Translation LLM", cfg.GetLLM()))
	}

	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

func usesLLM(method string) bool {
	parsed, err := stage.ParseTranslationMethod(strings.TrimSpace(method))
	if err != nil {
		return false
	}
	return parsed == stage.TranslationLLM || parsed == stage.TranslationOpenAI
}
