package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"scribe/internal/artifact"
	"scribe/internal/jobs"
	"scribe/internal/textutil"
)

// Format selects the export encoding.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatXLSX     Format = "xlsx"
)

// ErrNotCompleted is returned for jobs that have no notes to export.
var ErrNotCompleted = errors.New("job has not completed")

// ParseFormat accepts "markdown", "md" and "xlsx".
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "markdown", "md":
		return FormatMarkdown, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", value)
	}
}

// Extension is the file extension for f.
func (f Format) Extension() string {
	if f == FormatXLSX {
		return ".xlsx"
	}
	return ".md"
}

// Source reads the artifacts of a job.
type Source interface {
	Get(ctx context.Context, id int64) (*jobs.Job, error)
	Notes(ctx context.Context, jobID int64) (*artifact.Notes, error)
	Transcripts(ctx context.Context, jobID int64) ([]jobs.Transcript, error)
}

// Document is everything an export needs about one job.
type Document struct {
	Job         *jobs.Job
	Notes       *artifact.Notes
	Transcripts []jobs.Transcript
}

// Title is the content title, falling back to the source id.
func (d Document) Title() string {
	for _, tr := range d.Transcripts {
		if title := strings.TrimSpace(tr.Title); title != "" {
			return title
		}
	}
	return d.Job.SourceID
}

// Duration is the longest transcript duration.
func (d Document) Duration() float64 {
	var longest float64
	for _, tr := range d.Transcripts {
		longest = max(longest, tr.DurationSeconds)
	}
	return longest
}

// Load gathers a completed job's artifacts.
func Load(ctx context.Context, src Source, jobID int64) (Document, error) {
	job, err := src.Get(ctx, jobID)
	if err != nil {
		return Document{}, err
	}
	if job.State != jobs.StateCompleted {
		return Document{}, fmt.Errorf("job %d is %s: %w", jobID, job.State, ErrNotCompleted)
	}
	notes, err := src.Notes(ctx, jobID)
	if err != nil {
		return Document{}, fmt.Errorf("load notes: %w", err)
	}
	transcripts, err := src.Transcripts(ctx, jobID)
	if err != nil {
		return Document{}, fmt.Errorf("load transcripts: %w", err)
	}
	return Document{Job: job, Notes: notes, Transcripts: transcripts}, nil
}

// FileName is the default export file name for doc.
func FileName(doc Document, format Format) string {
	return fmt.Sprintf("%s-job%d%s", textutil.SafeFileName(doc.Job.SourceID), doc.Job.ID, format.Extension())
}

// WriteFile writes doc into dir and returns the file path.
func WriteFile(doc Document, format Format, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	path := filepath.Join(dir, FileName(doc, format))
	switch format {
	case FormatXLSX:
		if err := WriteWorkbook(doc, path); err != nil {
			return "", err
		}
	default:
		if err := os.WriteFile(path, []byte(RenderMarkdown(doc)), 0o644); err != nil {
			return "", fmt.Errorf("write markdown: %w", err)
		}
	}
	return path, nil
}
