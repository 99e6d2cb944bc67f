package ipc

import (
	"context"

	"scribe/internal/jobs"
)

// serviceName prefixes every RPC method.
const serviceName = "Scribe"

// Controller is the daemon surface served over the socket.
type Controller interface {
	Snapshot(ctx context.Context) StatusResponse
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
}

// StatusRequest asks for a runtime snapshot.
type StatusRequest struct{}

// StatusResponse is the daemon's runtime state.
type StatusResponse struct {
	Running      bool               `json:"running"`
	Paused       bool               `json:"paused"`
	PID          int                `json:"pid"`
	Workers      int                `json:"workers"`
	ActiveJobs   []int64            `json:"active_jobs"`
	LastError    string             `json:"last_error,omitempty"`
	LastJobID    int64              `json:"last_job_id,omitempty"`
	LastJobState string             `json:"last_job_state,omitempty"`
	Queue        jobs.HealthSummary `json:"queue"`
	DatabasePath string             `json:"database_path"`
	LockPath     string             `json:"lock_path"`
}

// PauseRequest stops the workers without releasing the daemon lock.
type PauseRequest struct{}

// PauseResponse confirms the pause.
type PauseResponse struct {
	Paused bool `json:"paused"`
}

// ResumeRequest restarts paused workers.
type ResumeRequest struct{}

// ResumeResponse confirms the resume.
type ResumeResponse struct {
	Paused bool `json:"paused"`
}
