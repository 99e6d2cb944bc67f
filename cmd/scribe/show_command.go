package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scribe/internal/export"
	"scribe/internal/jobs"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var transcriptOnly bool
	var language string

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Print a completed job's notes or its transcripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *jobs.Store) error {
				if transcriptOnly {
					return showTranscripts(cmd, ctx, store, id, language)
				}
				doc, err := export.Load(cmd.Context(), store, id)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, doc.Notes)
				}
				fmt.Fprint(cmd.OutOrStdout(), export.RenderMarkdown(doc))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&transcriptOnly, "transcript", false, "Print stored transcripts instead of notes")
	cmd.Flags().StringVar(&language, "language", "", "Only print the transcript in this language")
	return cmd
}

func showTranscripts(cmd *cobra.Command, ctx *commandContext, store *jobs.Store, id int64, language string) error {
	if _, err := store.Get(cmd.Context(), id); err != nil {
		return err
	}
	list, err := store.Transcripts(cmd.Context(), id)
	if err != nil {
		return err
	}
	var selected []jobs.Transcript
	for _, tr := range list {
		if language == "" || tr.Language == language {
			selected = append(selected, tr)
		}
	}
	if len(selected) == 0 {
		return fmt.Errorf("job %d has no stored transcript", id)
	}
	if ctx.JSONMode() {
		return writeJSON(cmd, selected)
	}
	out := cmd.OutOrStdout()
	for i, tr := range selected {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "# %s [%s via %s]\n\n%s\n", dash(tr.Title), tr.Language, tr.Provider, tr.RawText)
	}
	return nil
}
