package jobs

import "errors"

var (
	// ErrNotFound reports a missing job, transcript, notes row or cache entry.
	ErrNotFound = errors.New("not found")
	// ErrIllegalTransition reports a state change the lifecycle forbids.
	ErrIllegalTransition = errors.New("illegal state transition")
	// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
	ErrSchemaMismatch = errors.New("schema version mismatch")
)
