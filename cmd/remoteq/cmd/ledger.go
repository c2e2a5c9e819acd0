package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"remoteq/internal/blockchain"
)

func ledgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect or verify a result ledger",
	}
	cmd.AddCommand(ledgerInspectCmd(), ledgerVerifyCmd())
	return cmd
}

func ledgerInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <ledger.jsonl>",
		Short: "Print one line per block",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, err := blockchain.OpenLedger(args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "INDEX\tJOB\tBOARD\tDEVICE\tSTATUS\tHASH")
			for _, b := range ledger.Blocks() {
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\n", b.Index, b.JobID, b.Board, b.Device, b.Status, shortHash(b.Hash))
			}
			return w.Flush()
		},
	}
}

func ledgerVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <ledger.jsonl>",
		Short: "Check hashes, links and signatures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, err := blockchain.OpenLedger(args[0])
			if err != nil {
				return err
			}
			if err := ledger.VerifyChain(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ledger OK (%d blocks)\n", ledger.Len())
			return nil
		},
	}
}

func shortHash(h string) string {
	if len(h) > 16 {
		return h[:16]
	}
	return h
}
