package workflow

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scribe/internal/config"
	"scribe/internal/jobs"
	"scribe/internal/logging"
	"scribe/internal/textutil"
)

// JobLogs writes one JSON log file per job run under <log_dir>/jobs.
type JobLogs struct {
	baseDir string
	level   string
}

// NewJobLogs returns nil when no log directory is configured.
func NewJobLogs(cfg *config.Config) *JobLogs {
	if cfg == nil || strings.TrimSpace(cfg.Paths.LogDir) == "" {
		return nil
	}
	level := strings.TrimSpace(cfg.Logging.Level)
	if level == "" {
		level = "info"
	}
	return &JobLogs{
		baseDir: filepath.Join(cfg.Paths.LogDir, "jobs"),
		level:   level,
	}
}

// Dir is where job logs are written.
func (j *JobLogs) Dir() string {
	if j == nil {
		return ""
	}
	return j.baseDir
}

// Path returns the log file for one run of job.
func (j *JobLogs) Path(job *jobs.Job, started time.Time) string {
	return filepath.Join(j.baseDir, fmt.Sprintf("%s-job%d-%s.log",
		started.UTC().Format("20060102T150405"), job.ID, textutil.Slug(job.SourceID)))
}

// Open tees base into a new log file for job. The returned closer must be
// called when the run ends.
func (j *JobLogs) Open(base *slog.Logger, job *jobs.Job) (*slog.Logger, string, io.Closer, error) {
	if j == nil {
		return base, "", io.NopCloser(nil), nil
	}
	if job == nil {
		return nil, "", nil, fmt.Errorf("job is nil")
	}
	if err := os.MkdirAll(j.baseDir, 0o755); err != nil {
		return nil, "", nil, fmt.Errorf("ensure job log directory: %w", err)
	}
	path := j.Path(job, time.Now())
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, "", nil, fmt.Errorf("open job log: %w", err)
	}
	return logging.Tee(base, file, j.level), path, file, nil
}
