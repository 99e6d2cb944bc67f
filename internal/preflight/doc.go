// Package preflight provides readiness checks for the directories and
// external services scribe depends on.
//
// The daemon runs RunAll once before starting workers and refuses to start
// when a check fails. The CLI "scribe preflight" command prints the same
// results as a table.
package preflight
