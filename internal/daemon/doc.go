// Package daemon coordinates the long-running scribed process.
//
// It wires configuration, the job store, the pipeline orchestrator and the
// workflow manager into a single lifecycle with flock-based locking to
// prevent multiple instances. On start it fails jobs a previous process left
// in flight, since nothing can resume them.
//
// Keep orchestration logic here: job stages live in internal/pipeline and
// worker scheduling in internal/workflow.
package daemon
