package preflight

import (
	"context"
	"fmt"
	"strings"

	"scribe/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every applicable preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Paths.ExportDir != "" {
		results = append(results, CheckDirectoryAccess("Export directory", cfg.Paths.ExportDir))
	}

	results = append(results, CheckLLM(ctx, "Primary LLM", cfg.LLM))
	if cfg.HasFallbackLLM() {
		results = append(results, CheckLLM(ctx, "Fallback LLM", cfg.LLMFallback))
	}

	if cfg.Cache.Backend == config.CacheBackendRedis {
		results = append(results, CheckRedis(ctx, cfg.Cache.RedisURL))
	}
	return results
}

// Failures joins the details of failed results, or returns nil.
func Failures(results []Result) error {
	var failures []string
	for _, r := range results {
		if !r.Passed {
			failures = append(failures, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(failures) == 0 {
		return nil
	}
	return fmt.Errorf("preflight checks failed: %s", strings.Join(failures, "; "))
}
