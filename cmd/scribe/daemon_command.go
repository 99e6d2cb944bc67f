package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scribe/internal/daemon"
	"scribe/internal/ipc"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run or control the job worker daemon",
	}
	daemonCmd.AddCommand(newDaemonRunCommand(ctx))
	daemonCmd.AddCommand(newDaemonStatusCommand(ctx))
	daemonCmd.AddCommand(newDaemonPauseCommand(ctx))
	daemonCmd.AddCommand(newDaemonResumeCommand(ctx))
	return daemonCmd
}

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var development bool
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemon.Run(cmd.Context(), cfg, daemon.Options{
				LogLevel:      ctx.logLevel(cfg),
				Development:   development,
				SkipPreflight: skipPreflight,
			})
		},
	}

	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log output")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Start even when preflight checks fail")
	return cmd
}

func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	client, err := ipc.Dial(cfg.SocketPath())
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

func newDaemonStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show worker activity of the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, status)
				}
				state := "running"
				if status.Paused {
					state = "paused"
				}
				active := make([]string, 0, len(status.ActiveJobs))
				for _, id := range status.ActiveJobs {
					active = append(active, fmt.Sprintf("%d", id))
				}
				rows := [][]string{
					{"State", state},
					{"PID", fmt.Sprintf("%d", status.PID)},
					{"Workers", fmt.Sprintf("%d", status.Workers)},
					{"Active jobs", dash(strings.Join(active, ", "))},
					{"Pending", fmt.Sprintf("%d", status.Queue.Pending)},
					{"In flight", fmt.Sprintf("%d", status.Queue.InFlight)},
					{"Failed", fmt.Sprintf("%d", status.Queue.Failed)},
					{"Completed", fmt.Sprintf("%d", status.Queue.Completed)},
					{"Last error", dash(status.LastError)},
					{"Database", status.DatabasePath},
				}
				if status.LastJobID > 0 {
					rows = append(rows, []string{"Last job", fmt.Sprintf("%d (%s)", status.LastJobID, status.LastJobState)})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
				fmt.Fprintln(cmd.OutOrStdout())
				return nil
			})
		},
	}
}

func newDaemonPauseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Stop the daemon's workers; running jobs are failed as cancelled",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Pause(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon workers paused")
				return nil
			})
		},
	}
}

func newDaemonResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Restart paused workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Resume(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon workers resumed")
				return nil
			})
		},
	}
}
