// Package cli builds the statsquest command tree.
package cli

import (
	"github.com/spf13/cobra"
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:           "statsquest",
		Short:         "Statistics learning service with an AI tutor, quizzes and badges",
		SilenceUsage:  true,
		SilenceErrors: true,
		// With no subcommand the server starts.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port)
		},
	}

	cmd.PersistentFlags().IntVar(&port, "port", 0, "port to listen on (overrides STATSQUEST_SERVER_PORT)")
	cmd.AddCommand(newServeCmd(&port))
	cmd.AddCommand(newProgressCmd())
	cmd.AddCommand(newReportCmd())
	return cmd
}
