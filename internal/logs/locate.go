package logs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// DaemonLog is the pointer to the current daemon log inside logDir.
func DaemonLog(logDir string) string {
	return filepath.Join(logDir, "scribed.log")
}

// JobLog returns the newest per-job log written for jobID.
func JobLog(logDir string, jobID int64) (string, error) {
	pattern := filepath.Join(logDir, "jobs", fmt.Sprintf("*-job%d-*.log", jobID))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no log found for job %d: %w", jobID, os.ErrNotExist)
	}
	// Names start with a UTC timestamp.
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}
