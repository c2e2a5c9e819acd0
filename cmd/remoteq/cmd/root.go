package cmd

import (
	"github.com/spf13/cobra"

	"remoteq/internal/logging"
)

// RootCmd is the root command. All sub-commands are registered here.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "remoteq",
		Short:         "remoteq queues assembly programs and runs them on remote boards.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.ConfigureCommandLine()
		},
	}

	cmd.PersistentFlags().String("server", "http://localhost:5000", "gateway URL used by client commands")

	cmd.AddCommand(
		serveCmd(),
		submitCmd(),
		statusCmd(),
		cancelCmd(),
		positionCmd(),
		boardsCmd(),
		ledgerCmd(),
		keysCmd(),
	)
	return cmd
}
