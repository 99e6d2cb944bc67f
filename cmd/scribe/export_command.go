package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/export"
	"scribe/internal/jobs"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var formatFlag string
	var outDir string

	cmd := &cobra.Command{
		Use:   "export <job-id>",
		Short: "Write a completed job's notes to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			format, err := export.ParseFormat(formatFlag)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dir := cfg.Paths.ExportDir
			if strings.TrimSpace(outDir) != "" {
				if dir, err = config.ExpandPath(outDir); err != nil {
					return fmt.Errorf("resolve output directory: %w", err)
				}
			}
			return ctx.withStore(func(store *jobs.Store) error {
				doc, err := export.Load(cmd.Context(), store, id)
				if err != nil {
					return err
				}
				path, err := export.WriteFile(doc, format, dir)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported job %d to %s\n", id, path)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&formatFlag, "format", "f", "markdown", "Export format (markdown or xlsx)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (defaults to paths.export_dir)")
	return cmd
}
