package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"scribe/internal/artifact"
)

// SaveTranscript stores a transcript for a job. A second save for the same
// job and language replaces the first.
func (s *Store) SaveTranscript(ctx context.Context, tr Transcript) (*Transcript, error) {
	if tr.JobID == 0 {
		return nil, errors.New("transcript job id is required")
	}
	language := strings.TrimSpace(tr.Language)
	if language == "" {
		return nil, errors.New("transcript language is required")
	}
	segments, err := json.Marshal(tr.Segments)
	if err != nil {
		return nil, fmt.Errorf("marshal segments: %w", err)
	}
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now().UTC()
	}
	tr.Language = language
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO transcripts (
            job_id, source_id, language, provider, title, raw_text, segments_json, duration_seconds, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (job_id, language) DO UPDATE SET
            provider = excluded.provider, title = excluded.title, raw_text = excluded.raw_text,
            segments_json = excluded.segments_json, duration_seconds = excluded.duration_seconds`,
		tr.JobID,
		tr.SourceID,
		tr.Language,
		tr.Provider,
		nullableString(tr.Title),
		tr.RawText,
		string(segments),
		tr.DurationSeconds,
		formatTime(tr.CreatedAt),
	); err != nil {
		return nil, fmt.Errorf("save transcript: %w", err)
	}
	return &tr, nil
}

// Transcripts returns a job's transcripts in the order they were saved.
func (s *Store) Transcripts(ctx context.Context, jobID int64) ([]Transcript, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT id, job_id, source_id, language, provider, title, raw_text, segments_json, duration_seconds, created_at
         FROM transcripts WHERE job_id = ? ORDER BY id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("query transcripts: %w", err)
	}
	defer rows.Close()

	var out []Transcript
	for rows.Next() {
		var (
			tr         Transcript
			title      sql.NullString
			segments   string
			createdRaw string
		)
		if err := rows.Scan(&tr.ID, &tr.JobID, &tr.SourceID, &tr.Language, &tr.Provider, &title,
			&tr.RawText, &segments, &tr.DurationSeconds, &createdRaw); err != nil {
			return nil, err
		}
		tr.Title = title.String
		if err := json.Unmarshal([]byte(segments), &tr.Segments); err != nil {
			return nil, fmt.Errorf("decode segments for transcript %d: %w", tr.ID, err)
		}
		if created, err := parseTimeString(createdRaw); err == nil {
			tr.CreatedAt = created
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// SaveNotes stores the generated notes for a job, replacing earlier notes.
func (s *Store) SaveNotes(ctx context.Context, jobID int64, notes artifact.Notes) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return insertNotes(ctx, tx, jobID, notes)
	})
}

func insertNotes(ctx context.Context, tx *sql.Tx, jobID int64, notes artifact.Notes) error {
	if notes.SchemaVersion == 0 {
		notes.SchemaVersion = artifact.SchemaVersion
	}
	payload, err := json.Marshal(notes)
	if err != nil {
		return fmt.Errorf("marshal notes: %w", err)
	}
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO notes (job_id, schema_version, model, notes_json, total_tokens, created_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT (job_id) DO UPDATE SET
             schema_version = excluded.schema_version, model = excluded.model,
             notes_json = excluded.notes_json, total_tokens = excluded.total_tokens`,
		jobID,
		notes.SchemaVersion,
		nullableString(notes.Model),
		string(payload),
		notes.TotalTokens(),
		formatTime(time.Now()),
	); err != nil {
		return fmt.Errorf("save notes: %w", err)
	}
	return nil
}

// Notes returns the notes stored for a job.
func (s *Store) Notes(ctx context.Context, jobID int64) (*artifact.Notes, error) {
	var payload string
	err := s.db.QueryRowContext(ensureContext(ctx), `SELECT notes_json FROM notes WHERE job_id = ?`, jobID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("notes for job %d: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get notes: %w", err)
	}
	var notes artifact.Notes
	if err := json.Unmarshal([]byte(payload), &notes); err != nil {
		return nil, fmt.Errorf("decode notes for job %d: %w", jobID, err)
	}
	return &notes, nil
}

// Usage returns how many fresh completions an owner has accumulated.
func (s *Store) Usage(ctx context.Context, ownerID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ensureContext(ctx), `SELECT usage_count FROM owners WHERE owner_id = ?`,
		strings.TrimSpace(ownerID)).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get usage: %w", err)
	}
	return count, nil
}

// IncrementUsage bumps an owner's usage counter and returns the new value.
func (s *Store) IncrementUsage(ctx context.Context, ownerID string) (int64, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return 0, nil
	}
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO owners (owner_id, usage_count, updated_at) VALUES (?, 1, ?)
         ON CONFLICT (owner_id) DO UPDATE SET usage_count = usage_count + 1, updated_at = excluded.updated_at`,
		ownerID,
		formatTime(time.Now()),
	); err != nil {
		return 0, fmt.Errorf("increment usage: %w", err)
	}
	return s.Usage(ctx, ownerID)
}
