package jobs

import (
	"database/sql"
	"errors"
	"time"
)

const jobColumns = "id, source_id, owner_id, source_url, state, progress_percent, progress_message, error_message, cloned_from, resubmitted_from, tokens_used, created_at, updated_at, started_at, completed_at, last_heartbeat"

// timestampLayout is fixed width so stored timestamps compare lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id              int64
		sourceID        string
		ownerID         string
		sourceURL       sql.NullString
		stateStr        string
		progressPercent sql.NullFloat64
		progressMessage sql.NullString
		errorMessage    sql.NullString
		clonedFrom      sql.NullInt64
		resubmitted     sql.NullInt64
		tokensUsed      sql.NullInt64
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
		startedRaw      sql.NullString
		completedRaw    sql.NullString
		heartbeatRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sourceID,
		&ownerID,
		&sourceURL,
		&stateStr,
		&progressPercent,
		&progressMessage,
		&errorMessage,
		&clonedFrom,
		&resubmitted,
		&tokensUsed,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&completedRaw,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		SourceID:        sourceID,
		OwnerID:         ownerID,
		SourceURL:       sourceURL.String,
		State:           State(stateStr),
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
		ErrorMessage:    errorMessage.String,
		ClonedFrom:      nullInt64Ptr(clonedFrom),
		ResubmittedFrom: nullInt64Ptr(resubmitted),
		TokensUsed:      tokensUsed.Int64,
		StartedAt:       nullTimePtr(startedRaw),
		CompletedAt:     nullTimePtr(completedRaw),
		LastHeartbeat:   nullTimePtr(heartbeatRaw),
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func nullInt64Ptr(value sql.NullInt64) *int64 {
	if !value.Valid {
		return nil
	}
	v := value.Int64
	return &v
}

func nullTimePtr(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	t, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt64(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func formatTime(value time.Time) string {
	return value.UTC().Format(timestampLayout)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func stateArgs(states []State) []any {
	args := make([]any, len(states))
	for i, state := range states {
		args[i] = state
	}
	return args
}
