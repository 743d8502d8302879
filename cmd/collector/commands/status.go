package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/vendor-collector/pkg/checkpoint"
	"github.com/Sternrassler/vendor-collector/pkg/pipeline"
)

func newStatusCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status [SESSION_ID]",
		Short: "Prints the progress of one or all sessions.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, global)
			if err != nil {
				return err
			}
			defer a.Close()

			o, err := a.orchestrator(false)
			if err != nil {
				return err
			}

			var summaries []pipeline.Summary
			if len(args) == 1 {
				s, err := o.Status(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				summaries = append(summaries, s)
			} else {
				summaries, err = o.Sessions(cmd.Context())
				if err != nil {
					return err
				}
			}

			if len(summaries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions.")
				return nil
			}
			renderSummaries(cmd.OutOrStdout(), summaries)
			return nil
		},
	}
}

func renderSummaries(w io.Writer, summaries []pipeline.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Session", "Status", "Items", "Progress", "Batches", "Success", "Failed", "Invalid", "Error", "Updated"})

	for _, s := range summaries {
		updated := ""
		if !s.LastUpdated.IsZero() {
			updated = s.LastUpdated.Local().Format(time.DateTime)
		}
		status := string(s.Status)
		if s.Error != "" {
			status += ": " + s.Error
		}
		t.AppendRow(table.Row{
			s.SessionID,
			status,
			s.Items,
			fmt.Sprintf("%d/%d (%.1f%%)", s.CurrentIndex, s.TotalCount, s.Percent()),
			s.Batches,
			s.Counts[checkpoint.ItemSuccess],
			s.Counts[checkpoint.ItemVendorFailed],
			s.Counts[checkpoint.ItemInvalidData],
			s.Counts[checkpoint.ItemError],
			updated,
		})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}
