// Package main implements the scribe command-line client.
//
// The CLI works directly against the job database: it submits and inspects
// jobs, exports completed notes and runs preflight checks. The daemon
// subcommands host the worker daemon or reach a running one over its
// socket. Job processing normally happens in scribed; `scribe submit --run`
// processes a single job inline instead.
package main
