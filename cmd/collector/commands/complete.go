package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCompleteCmd(global *globalOptions) *cobra.Command {
	var (
		output  string
		cleanup bool
	)

	cmd := &cobra.Command{
		Use:   "complete SESSION_ID [--output NAME] [--cleanup]",
		Short: "Merges the batch files of a completed session into one output file.",
		Args:  cobra.ExactArgs(1),
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

			res, err := o.Complete(cmd.Context(), args[0], output)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Merged %d batches (%d rows) into %s\n", res.Batches, res.Rows, res.Path)

			if cleanup {
				if err := o.Cleanup(cmd.Context(), args[0], true); err != nil {
					return fmt.Errorf("cleanup: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed batch files and checkpoint of %s\n", args[0])
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&output, "output", "", "Output file name (default SESSION_ID_merged.csv).")
	flags.BoolVar(&cleanup, "cleanup", false, "Delete batch files and checkpoint after merging.")
	return cmd
}
