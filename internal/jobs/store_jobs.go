package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"scribe/internal/artifact"
)

// NewJob describes a job to insert.
type NewJob struct {
	SourceID        string
	OwnerID         string
	SourceURL       string
	ResubmittedFrom *int64
}

// Create inserts a pending job.
func (s *Store) Create(ctx context.Context, req NewJob) (*Job, error) {
	sourceID := strings.TrimSpace(req.SourceID)
	if sourceID == "" {
		return nil, errors.New("source id is required")
	}
	timestamp := formatTime(time.Now())

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            source_id, owner_id, source_url, state, progress_percent, progress_message,
            resubmitted_from, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sourceID,
		strings.TrimSpace(req.OwnerID),
		nullableString(strings.TrimSpace(req.SourceURL)),
		StatePending,
		0.0,
		"Queued",
		nullableInt64(req.ResubmittedFrom),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.Get(ctx, id)
}

// Get fetches a job by identifier.
func (s *Store) Get(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// FindReusable returns the newest job for owner and source that has not
// failed, or nil when there is none.
func (s *Store) FindReusable(ctx context.Context, ownerID, sourceID string) (*Job, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+jobColumns+` FROM jobs
         WHERE owner_id = ? AND source_id = ? AND state <> ?
         ORDER BY id DESC LIMIT 1`,
		strings.TrimSpace(ownerID),
		strings.TrimSpace(sourceID),
		StateFailed,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find reusable job: %w", err)
	}
	return job, nil
}

// Update persists changes to an existing job. The state change, if any, must
// be allowed by CanTransition; terminal jobs are never updated.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return updateJob(ctx, tx, job)
	})
}

// Complete stores notes and moves job to completed in one transaction, so a
// notes row never exists for a job that did not complete. job is only
// modified once the write has committed.
func (s *Store) Complete(ctx context.Context, job *Job, notes artifact.Notes, message string) error {
	if job == nil {
		return errors.New("job is nil")
	}
	done := *job
	done.SetCompleted(message)
	done.UpdatedAt = time.Now().UTC()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertNotes(ctx, tx, done.ID, notes); err != nil {
			return err
		}
		return updateJob(ctx, tx, &done)
	})
	if err != nil {
		return fmt.Errorf("complete job %d: %w", job.ID, err)
	}
	*job = done
	return nil
}

func updateJob(ctx context.Context, tx *sql.Tx, job *Job) error {
	// A heartbeat written by the worker's ticker is never moved backwards.
	heartbeat := nullableTime(job.LastHeartbeat)
	var current State
	err := tx.QueryRowContext(ctx, `SELECT state FROM jobs WHERE id = ?`, job.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("job %d: %w", job.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read job state: %w", err)
	}
	if current.IsTerminal() || (current != job.State && !CanTransition(current, job.State)) {
		return fmt.Errorf("%w: job %d %s -> %s", ErrIllegalTransition, job.ID, current, job.State)
	}
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE jobs
         SET state = ?, progress_percent = ?, progress_message = ?, error_message = ?,
             tokens_used = ?, updated_at = ?, started_at = ?, completed_at = ?,
             last_heartbeat = CASE
                 WHEN ? IS NULL THEN NULL
                 WHEN last_heartbeat IS NULL OR last_heartbeat < ? THEN ?
                 ELSE last_heartbeat
             END
         WHERE id = ?`,
		job.State,
		job.ProgressPercent,
		nullableString(job.ProgressMessage),
		nullableString(job.ErrorMessage),
		job.TokensUsed,
		formatTime(job.UpdatedAt),
		nullableTime(job.StartedAt),
		nullableTime(job.CompletedAt),
		heartbeat,
		heartbeat,
		heartbeat,
		job.ID,
	); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// ClaimNext atomically moves the oldest pending job to fetching_source and
// returns it. It returns nil when nothing is pending.
func (s *Store) ClaimNext(ctx context.Context) (*Job, error) {
	ctx = ensureContext(ctx)
	var job *Job
	err := retryOnBusy(ctx, func() error {
		now := formatTime(time.Now())
		row := s.db.QueryRowContext(
			ctx,
			`UPDATE jobs
             SET state = ?, progress_percent = ?, progress_message = ?,
                 started_at = ?, last_heartbeat = ?, updated_at = ?
             WHERE id = (SELECT id FROM jobs WHERE state = ? ORDER BY created_at, id LIMIT 1)
               AND state = ?
             RETURNING `+jobColumns,
			StateFetchingSource,
			10.0,
			"Fetching transcript",
			now,
			now,
			now,
			StatePending,
			StatePending,
		)
		claimed, err := scanJob(row)
		if errors.Is(err, sql.ErrNoRows) {
			job = nil
			return nil
		}
		if err != nil {
			return err
		}
		job = claimed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim next job: %w", err)
	}
	return job, nil
}

// List returns jobs filtered by state (or all jobs when none is given), oldest first.
func (s *Store) List(ctx context.Context, states ...State) ([]*Job, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var args []any
	if len(states) > 0 {
		query += ` WHERE state IN (` + makePlaceholders(len(states)) + `)`
		args = stateArgs(states)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Delete removes a job together with its transcripts and notes. Completion
// cache entries are untouched.
func (s *Store) Delete(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE job_id = ?`, id); err != nil {
			return fmt.Errorf("delete notes: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM transcripts WHERE job_id = ?`, id); err != nil {
			return fmt.Errorf("delete transcripts: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete job: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("job %d: %w", id, ErrNotFound)
		}
		return nil
	})
}

// ClearStates removes every job in the given states (all jobs when none is
// given). Dependent rows cascade.
func (s *Store) ClearStates(ctx context.Context, states ...State) (int64, error) {
	query := `DELETE FROM jobs`
	var args []any
	if len(states) > 0 {
		query += ` WHERE state IN (` + makePlaceholders(len(states)) + `)`
		args = stateArgs(states)
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	return res.RowsAffected()
}
