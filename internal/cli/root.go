// Package cli holds the cobra commands of the jobsys binary.
package cli

import (
	"github.com/spf13/cobra"

	logx "jobsys/pkg/logx"
)

var (
	flagLogLevel string

	logger logx.Logger
)

// NewRootCmd creates the root command for the jobsys CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "jobsys",
		Short: "Multi-threaded job scheduler daemon",
		Long:  "jobsys runs a work-stealing job scheduler driven by a fixed-rate frame loop and cron-style background jobs.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logx.NewWriter(cmd.ErrOrStderr(), flagLogLevel)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level for commands without a config file (trace, debug, info, warn, error)")

	root.AddCommand(
		newRunCmd(),
		newBenchCmd(),
	)
	return root
}
