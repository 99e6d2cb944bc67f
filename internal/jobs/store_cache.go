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

// LookupCompletion returns the completion cache entry for a source id.
func (s *Store) LookupCompletion(ctx context.Context, sourceID string) (*CacheEntry, error) {
	sourceID = strings.TrimSpace(sourceID)
	var (
		entry           CacheEntry
		complete        int
		transcriptsJSON string
		notesJSON       sql.NullString
		createdRaw      string
		updatedRaw      string
	)
	err := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT source_id, complete, origin_job_id, transcripts_json, notes_json, created_at, updated_at
         FROM completion_cache WHERE source_id = ?`,
		sourceID,
	).Scan(&entry.SourceID, &complete, &entry.OriginJobID, &transcriptsJSON, &notesJSON, &createdRaw, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cache entry %q: %w", sourceID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup completion: %w", err)
	}
	entry.Complete = complete != 0
	if err := json.Unmarshal([]byte(transcriptsJSON), &entry.Transcripts); err != nil {
		return nil, fmt.Errorf("decode cached transcripts: %w", err)
	}
	if notesJSON.Valid && notesJSON.String != "" {
		var notes artifact.Notes
		if err := json.Unmarshal([]byte(notesJSON.String), &notes); err != nil {
			return nil, fmt.Errorf("decode cached notes: %w", err)
		}
		entry.Notes = &notes
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		entry.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		entry.UpdatedAt = updated
	}
	return &entry, nil
}

// PopulateCompletion upserts a cache entry. A complete entry replaces a
// partial one; an existing complete entry is kept.
func (s *Store) PopulateCompletion(ctx context.Context, entry CacheEntry) error {
	sourceID := strings.TrimSpace(entry.SourceID)
	if sourceID == "" {
		return errors.New("cache entry source id is required")
	}
	if entry.Complete && entry.Notes == nil {
		return errors.New("complete cache entry requires notes")
	}
	transcripts := make([]Transcript, len(entry.Transcripts))
	for i, tr := range entry.Transcripts {
		tr.ID = 0
		tr.JobID = 0
		transcripts[i] = tr
	}
	transcriptsJSON, err := json.Marshal(transcripts)
	if err != nil {
		return fmt.Errorf("marshal cached transcripts: %w", err)
	}
	var notesJSON any
	if entry.Notes != nil {
		payload, err := json.Marshal(entry.Notes)
		if err != nil {
			return fmt.Errorf("marshal cached notes: %w", err)
		}
		notesJSON = string(payload)
	}
	now := formatTime(time.Now())
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO completion_cache (
            source_id, complete, origin_job_id, transcripts_json, notes_json, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (source_id) DO UPDATE SET
            complete = excluded.complete, origin_job_id = excluded.origin_job_id,
            transcripts_json = excluded.transcripts_json, notes_json = excluded.notes_json,
            updated_at = excluded.updated_at
        WHERE completion_cache.complete = 0`,
		sourceID,
		boolToInt(entry.Complete),
		entry.OriginJobID,
		string(transcriptsJSON),
		notesJSON,
		now,
		now,
	); err != nil {
		return fmt.Errorf("populate completion: %w", err)
	}
	return nil
}

// CloneCompleted creates a completed job for owner from a usable cache entry,
// copying its transcripts and notes with zeroed token counts. The owner's
// usage counter is not touched.
func (s *Store) CloneCompleted(ctx context.Context, entry *CacheEntry, ownerID, sourceURL string) (*Job, error) {
	if !entry.Usable() {
		return nil, errors.New("cache entry is not complete")
	}
	notes := *entry.Notes
	notes.ChaptersTokens, notes.NotesTokens, notes.TransformTokens = 0, 0, 0
	notesJSON, err := json.Marshal(notes)
	if err != nil {
		return nil, fmt.Errorf("marshal cloned notes: %w", err)
	}

	var jobID int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		now := formatTime(time.Now())
		res, err := tx.ExecContext(
			ctx,
			`INSERT INTO jobs (
                source_id, owner_id, source_url, state, progress_percent, progress_message,
                cloned_from, tokens_used, created_at, updated_at, started_at, completed_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`,
			entry.SourceID,
			strings.TrimSpace(ownerID),
			nullableString(strings.TrimSpace(sourceURL)),
			StateCompleted,
			100.0,
			"Completed from cache",
			entry.OriginJobID,
			now, now, now, now,
		)
		if err != nil {
			return fmt.Errorf("insert cloned job: %w", err)
		}
		if jobID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		for _, tr := range entry.Transcripts {
			segments, err := json.Marshal(tr.Segments)
			if err != nil {
				return fmt.Errorf("marshal segments: %w", err)
			}
			if _, err := tx.ExecContext(
				ctx,
				`INSERT INTO transcripts (
                    job_id, source_id, language, provider, title, raw_text, segments_json, duration_seconds, created_at
                ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				jobID, entry.SourceID, tr.Language, tr.Provider, nullableString(tr.Title),
				tr.RawText, string(segments), tr.DurationSeconds, now,
			); err != nil {
				return fmt.Errorf("copy transcript: %w", err)
			}
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO notes (job_id, schema_version, model, notes_json, total_tokens, created_at)
             VALUES (?, ?, ?, ?, 0, ?)`,
			jobID, notes.SchemaVersion, nullableString(notes.Model), string(notesJSON), now,
		); err != nil {
			return fmt.Errorf("copy notes: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("clone completed job: %w", err)
	}
	return s.Get(ctx, jobID)
}

// ClearCompletions removes every completion cache entry.
func (s *Store) ClearCompletions(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM completion_cache`)
	if err != nil {
		return 0, fmt.Errorf("clear completion cache: %w", err)
	}
	return res.RowsAffected()
}
