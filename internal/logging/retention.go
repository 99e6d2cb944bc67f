package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// PruneRule selects log files in Dir whose names match Glob. Paths listed in
// Keep are never removed.
type PruneRule struct {
	Dir  string
	Glob string
	Keep []string
}

// Prune removes matching files last modified more than days ago and returns
// how many were deleted. days <= 0 keeps everything.
func Prune(logger *slog.Logger, days int, rules ...PruneRule) int {
	if days <= 0 {
		return 0
	}
	if logger == nil {
		logger = NewNop()
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	removed := 0
	for _, rule := range rules {
		if rule.Dir == "" {
			continue
		}
		keep := make(map[string]bool, len(rule.Keep))
		for _, path := range rule.Keep {
			keep[filepath.Clean(path)] = true
		}
		matches, err := filepath.Glob(filepath.Join(rule.Dir, rule.Glob))
		if err != nil {
			continue
		}
		for _, path := range matches {
			if keep[filepath.Clean(path)] {
				continue
			}
			info, err := os.Lstat(path)
			if err != nil || !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
				continue
			}
			if err := os.Remove(path); err != nil {
				logger.Warn("log prune failed; file remains",
					String(FieldEventType, "log_prune_failed"),
					String("path", path),
					Error(err),
					String(FieldErrorHint, "check ownership of paths.log_dir"),
					String(FieldImpact, "old log files keep using disk space"))
				continue
			}
			removed++
			logger.Debug("log pruned", String(FieldEventType, "log_pruned"), String("path", path))
		}
	}
	return removed
}
