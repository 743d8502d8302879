package commands

import (
	"github.com/spf13/cobra"
)

func newResumeCmd(global *globalOptions) *cobra.Command {
	var retryFailed bool

	cmd := &cobra.Command{
		Use:   "resume SESSION_ID [--retry-failed]",
		Short: "Continues a session from its last checkpoint.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, global)
			if err != nil {
				return err
			}
			defer a.Close()

			o, err := a.orchestrator(true)
			if err != nil {
				return err
			}

			if retryFailed {
				s, err := o.Retry(cmd.Context(), args[0])
				return a.reportRun(cmd, s, err)
			}
			s, err := o.Resume(cmd.Context(), args[0])
			return a.reportRun(cmd, s, err)
		},
	}

	cmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "Reopen a session in error state.")
	return cmd
}
