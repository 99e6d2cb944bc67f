package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"scribe/internal/jobs"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the job queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show job counts per state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *jobs.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, stats)
				}
				rows := buildQueueStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"State", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				fmt.Fprintln(cmd.OutOrStdout())
				return nil
			})
		},
	}
}

// buildQueueStatusRows lists non-empty states in lifecycle order.
func buildQueueStatusRows(stats map[jobs.State]int) [][]string {
	var rows [][]string
	for _, state := range jobs.AllStates() {
		if count := stats[state]; count > 0 {
			rows = append(rows, []string{string(state), fmt.Sprintf("%d", count)})
		}
	}
	return rows
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var stateFilters []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, optionally filtered by state",
		RunE: func(cmd *cobra.Command, args []string) error {
			states, err := parseStateFilters(stateFilters)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *jobs.Store) error {
				list, err := store.List(cmd.Context(), states...)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					views := make([]jobView, 0, len(list))
					for _, job := range list {
						views = append(views, newJobView(job))
					}
					return writeJSON(cmd, views)
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(jobTableHeaders, jobRows(list), jobTableAligns))
				fmt.Fprintln(cmd.OutOrStdout())
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&stateFilters, "state", "s", nil, "Filter by state (repeatable)")
	return cmd
}

func parseStateFilters(values []string) ([]jobs.State, error) {
	states := make([]jobs.State, 0, len(values))
	for _, value := range values {
		state, ok := jobs.ParseState(value)
		if !ok {
			names := make([]string, 0, len(jobs.AllStates()))
			for _, s := range jobs.AllStates() {
				names = append(names, string(s))
			}
			return nil, fmt.Errorf("unknown state %q (valid: %s)", value, strings.Join(names, ", "))
		}
		states = append(states, state)
	}
	return states, nil
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var all, failed, completed, cache bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove jobs from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			var states []jobs.State
			switch {
			case all:
			case failed || completed:
				if failed {
					states = append(states, jobs.StateFailed)
				}
				if completed {
					states = append(states, jobs.StateCompleted)
				}
			case !cache:
				return errors.New("choose what to clear: --failed, --completed, --all or --cache")
			}
			return ctx.withStore(func(store *jobs.Store) error {
				out := cmd.OutOrStdout()
				if all || failed || completed {
					removed, err := store.ClearStates(cmd.Context(), states...)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Removed %d jobs\n", removed)
				}
				if cache {
					removed, err := store.ClearCompletions(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Removed %d completion cache entries\n", removed)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Remove every job")
	cmd.Flags().BoolVar(&failed, "failed", false, "Remove failed jobs")
	cmd.Flags().BoolVar(&completed, "completed", false, "Remove completed jobs")
	cmd.Flags().BoolVar(&cache, "cache", false, "Also empty the completion cache")
	return cmd
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check job database health (schema, integrity, columns)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *jobs.Store) error {
				resp, err := store.CheckHealth(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database path: %s\n", resp.DBPath)
				fmt.Fprintf(out, "Database exists: %s\n", yesNo(resp.DatabaseExists))
				fmt.Fprintf(out, "Readable: %s\n", yesNo(resp.DatabaseReadable))
				fmt.Fprintf(out, "Schema version: %d\n", resp.SchemaVersion)
				fmt.Fprintf(out, "jobs table present: %s\n", yesNo(resp.TableExists))
				if len(resp.MissingColumns) > 0 {
					missing := append([]string(nil), resp.MissingColumns...)
					sort.Strings(missing)
					fmt.Fprintf(out, "Missing columns: %s\n", strings.Join(missing, ", "))
				} else {
					fmt.Fprintln(out, "Missing columns: none")
				}
				fmt.Fprintf(out, "Integrity check: %s\n", yesNo(resp.IntegrityCheck))
				fmt.Fprintf(out, "Total jobs: %d\n", resp.TotalJobs)
				fmt.Fprintf(out, "Completion cache entries: %d\n", resp.CacheEntries)
				if resp.Error != "" {
					fmt.Fprintf(out, "Error: %s\n", resp.Error)
				}
				return nil
			})
		},
	}
}
