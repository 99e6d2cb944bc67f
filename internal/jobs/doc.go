// Package jobs persists processing jobs and their artifacts in SQLite.
//
// The Store owns five tables: jobs, transcripts, notes, owners and
// completion_cache. Jobs move through the states declared in models.go and
// the store refuses any update that CanTransition rejects, including every
// update that would move a job out of completed or failed. Deleting a job
// cascades to its transcripts and notes; completion cache rows are keyed by
// source id and outlive the job that populated them.
//
// Schema changes bump schemaVersion in schema.go; users clear the database to
// adopt the new schema.
package jobs
