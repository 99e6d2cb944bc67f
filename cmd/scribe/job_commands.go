package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scribe/internal/jobs"
	"scribe/internal/pipeline"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var owner string
	var runInline bool

	cmd := &cobra.Command{
		Use:   "submit <url-or-id>",
		Short: "Queue a video for note generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withOrchestrator(cmd, func(orch *pipeline.Orchestrator, store *jobs.Store) error {
				req := pipeline.SubmitRequest{OwnerID: owner}
				ref := strings.TrimSpace(args[0])
				if strings.Contains(ref, "://") {
					req.URL = ref
				} else {
					req.SourceID = ref
				}
				res, err := orch.Submit(cmd.Context(), req)
				if err != nil {
					return err
				}
				job := res.Job
				if runInline && res.Outcome == pipeline.OutcomeCreated {
					if err := orch.Run(cmd.Context(), job); err != nil {
						return err
					}
					if job, err = store.Get(cmd.Context(), job.ID); err != nil {
						return err
					}
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, struct {
						Outcome string  `json:"outcome"`
						Job     jobView `json:"job"`
					}{string(res.Outcome), newJobView(job)})
				}
				out := cmd.OutOrStdout()
				switch res.Outcome {
				case pipeline.OutcomeExisting:
					fmt.Fprintf(out, "Job %d already exists for %s (%s)\n", job.ID, job.SourceID, job.State)
				case pipeline.OutcomeCloned:
					fmt.Fprintf(out, "Job %d completed from cached result for %s\n", job.ID, job.SourceID)
				default:
					fmt.Fprintf(out, "Job %d queued for %s (%s)\n", job.ID, job.SourceID, job.State)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Owner the job is billed to")
	cmd.Flags().BoolVar(&runInline, "run", false, "Process the job in this process instead of waiting for the daemon")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a job's progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withOrchestrator(cmd, func(orch *pipeline.Orchestrator, _ *jobs.Store) error {
				report, err := orch.Status(cmd.Context(), id)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, report)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Job %d (%s): %s %s\n", report.JobID, report.SourceID, report.State, formatPercent(report.ProgressPercent))
				if report.Message != "" {
					fmt.Fprintf(out, "Message: %s\n", report.Message)
				}
				if report.ErrorReason != "" {
					fmt.Fprintf(out, "Error: %s\n", report.ErrorReason)
				}
				return nil
			})
		},
	}
}

func newResubmitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resubmit <job-id>",
		Short: "Queue a new attempt for a failed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withOrchestrator(cmd, func(orch *pipeline.Orchestrator, _ *jobs.Store) error {
				job, err := orch.Resubmit(cmd.Context(), id)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, newJobView(job))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d queued as a retry of job %d\n", job.ID, id)
				return nil
			})
		},
	}
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <job-id>",
		Short: "Delete a job and its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withOrchestrator(cmd, func(orch *pipeline.Orchestrator, _ *jobs.Store) error {
				if err := orch.Delete(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted job %d\n", id)
				return nil
			})
		},
	}
}
