// Package workflow runs queued jobs on a pool of daemon workers.
//
// The Manager starts Workers goroutines. Each one fails in-flight jobs whose
// heartbeat has gone stale, atomically claims the oldest pending job, keeps
// its heartbeat fresh while the pipeline runs, and makes sure the job ends
// in a terminal state. Per-job JSON logs are written under the log
// directory so a single submission can be inspected after the fact.
package workflow
