// Package commands implements the collector CLI.
package commands

import (
	"github.com/spf13/cobra"
)

type globalOptions struct {
	configPath  string
	logLevel    string
	logPretty   bool
	metricsAddr string
}

// NewRootCmd builds the collector command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "collector",
		Short:         "collector runs resumable, checkpointed vendor collection sessions.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "collector.json5", "Path to the JSON5 config file.")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error).")
	flags.BoolVar(&opts.logPretty, "log-pretty", false, "Human-readable console logs.")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve /metrics and /health on this address.")

	root.AddCommand(
		newStartCmd(opts),
		newResumeCmd(opts),
		newCompleteCmd(opts),
		newStatusCmd(opts),
	)
	return root
}
