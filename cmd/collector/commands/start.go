package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/vendor-collector/pkg/pipeline"
	"github.com/Sternrassler/vendor-collector/pkg/workitem"
)

type startOptions struct {
	rangeSpec string
	ids       string
	sessionID string
	batchSize int
	target    int
}

func newStartCmd(global *globalOptions) *cobra.Command {
	opts := &startOptions{}

	cmd := &cobra.Command{
		Use:   "start (--range START-END | --ids A,B,C) [--session ID]",
		Short: "Starts a collection session, or resumes it if --session already exists.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := opts.items()
			if err != nil {
				return err
			}

			a, err := newApp(cmd, global)
			if err != nil {
				return err
			}
			defer a.Close()

			o, err := a.orchestrator(true)
			if err != nil {
				return err
			}

			start := pipeline.StartOptions{
				SessionID:     opts.sessionID,
				BatchSize:     a.cfg.BatchSize,
				PerItemTarget: a.cfg.PerItemTarget,
			}
			if cmd.Flags().Changed("batch-size") {
				start.BatchSize = opts.batchSize
			}
			if cmd.Flags().Changed("target") {
				start.PerItemTarget = opts.target
			}

			s, err := o.Start(cmd.Context(), items, start)
			return a.reportRun(cmd, s, err)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.rangeSpec, "range", "", "Inclusive numeric vendor ID range, e.g. 1-1000.")
	flags.StringVar(&opts.ids, "ids", "", "Comma-separated vendor IDs.")
	flags.StringVar(&opts.sessionID, "session", "", "Session ID (generated when empty).")
	flags.IntVar(&opts.batchSize, "batch-size", 0, "Records per batch file (default from config).")
	flags.IntVar(&opts.target, "target", 0, "Products to collect per vendor (default from config).")
	cmd.MarkFlagsMutuallyExclusive("range", "ids")
	cmd.MarkFlagsOneRequired("range", "ids")

	return cmd
}

func (o *startOptions) items() (workitem.Spec, error) {
	if o.rangeSpec != "" {
		spec, err := workitem.Parse(o.rangeSpec)
		if err != nil {
			return spec, err
		}
		if spec.Kind != workitem.KindRange {
			return spec, fmt.Errorf("%w: --range expects START-END, got %q", workitem.ErrInvalidSpec, o.rangeSpec)
		}
		return spec, nil
	}

	var ids []string
	for _, id := range strings.Split(o.ids, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	spec := workitem.List(ids...)
	return spec, spec.Validate()
}
