package main

import (
	"fmt"
	"time"

	"scribe/internal/jobs"
)

type jobView struct {
	ID              int64   `json:"id"`
	SourceID        string  `json:"source_id"`
	OwnerID         string  `json:"owner_id,omitempty"`
	State           string  `json:"state"`
	ProgressPercent float64 `json:"progress_percent"`
	Message         string  `json:"message,omitempty"`
	Error           string  `json:"error,omitempty"`
	TokensUsed      int64   `json:"tokens_used"`
	ClonedFrom      *int64  `json:"cloned_from,omitempty"`
	ResubmittedFrom *int64  `json:"resubmitted_from,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

func newJobView(job *jobs.Job) jobView {
	return jobView{
		ID:              job.ID,
		SourceID:        job.SourceID,
		OwnerID:         job.OwnerID,
		State:           string(job.State),
		ProgressPercent: job.ProgressPercent,
		Message:         job.ProgressMessage,
		Error:           job.ErrorMessage,
		TokensUsed:      job.TokensUsed,
		ClonedFrom:      job.ClonedFrom,
		ResubmittedFrom: job.ResubmittedFrom,
		CreatedAt:       job.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       job.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func jobRows(list []*jobs.Job) [][]string {
	rows := make([][]string, 0, len(list))
	for _, job := range list {
		detail := job.ProgressMessage
		if job.State == jobs.StateFailed && job.ErrorMessage != "" {
			detail = job.ErrorMessage
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", job.ID),
			job.SourceID,
			dash(job.OwnerID),
			string(job.State),
			formatPercent(job.ProgressPercent),
			dash(detail),
			job.UpdatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	return rows
}

var jobTableHeaders = []string{"ID", "Source", "Owner", "State", "Progress", "Detail", "Updated"}

var jobTableAligns = []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft}

func formatPercent(p float64) string {
	return fmt.Sprintf("%.0f%%", p)
}

func dash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
