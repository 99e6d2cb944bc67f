package jobs

import (
	"context"
	"fmt"
	"time"
)

// UpdateHeartbeat refreshes the heartbeat of an in-flight job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := formatTime(time.Now())
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ?
         WHERE id = ? AND state IN (?, ?, ?)`,
		now,
		now,
		id,
		StateFetchingSource,
		StateTransforming,
		StateGenerating,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStale fails in-flight jobs whose heartbeat is older than cutoff.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.failInFlight(ctx, HeartbeatLostReason, &cutoff)
}

// FailInFlight fails every in-flight job regardless of heartbeat. The daemon
// calls it at startup, when no worker can still own a job.
func (s *Store) FailInFlight(ctx context.Context, reason string) (int64, error) {
	return s.failInFlight(ctx, reason, nil)
}

func (s *Store) failInFlight(ctx context.Context, reason string, cutoff *time.Time) (int64, error) {
	now := formatTime(time.Now())
	query := `UPDATE jobs
        SET state = ?, error_message = ?, progress_message = ?, last_heartbeat = NULL, updated_at = ?
        WHERE state IN (?, ?, ?)`
	args := []any{
		StateFailed, reason, reason, now,
		StateFetchingSource, StateTransforming, StateGenerating,
	}
	if cutoff != nil {
		query += ` AND COALESCE(last_heartbeat, updated_at) < ?`
		args = append(args, formatTime(*cutoff))
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("fail in-flight jobs: %w", err)
	}
	return res.RowsAffected()
}
