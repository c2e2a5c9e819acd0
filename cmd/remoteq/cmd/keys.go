package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"remoteq/internal/security"
)

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the ledger signing keys",
	}
	cmd.AddCommand(keysGenerateCmd())
	return cmd
}

func keysGenerateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Create the ledger key pair if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, _, generated, err := security.EnsureKeyPair(dir)
			if err != nil {
				return err
			}
			if !generated {
				fmt.Fprintf(cmd.OutOrStdout(), "Keys already present in %s\n", dir)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Public key: %x\n", []byte(pub))
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "keys", "directory holding server.pub and server.priv")
	return cmd
}
