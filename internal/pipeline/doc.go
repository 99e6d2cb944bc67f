// Package pipeline drives a job from submission to stored notes.
//
// The Orchestrator receives its collaborators through Deps: a Repository for
// jobs and artifacts, the raw-fetch cache, a source Fetcher and a generation
// Provider. Submit deduplicates work per owner and across owners through the
// completion cache; Run executes the fetch, transform and generate stages for
// one claimed job and records progress on the job row after each stage.
package pipeline
