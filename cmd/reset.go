package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/contact-miner/internal/metrics"
)

// newResetCmd creates the 'reset' subcommand, which makes failed items
// pending again.
func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear the status of every failed item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			n, err := appInstance.Store().ResetFailed(cmd.Context())
			if err != nil {
				return fmt.Errorf("reset failed items: %w", err)
			}
			metrics.ObserveItemsReset(n)
			fmt.Fprintf(cmd.OutOrStdout(), "reset %d failed items\n", n)
			return nil
		},
	}
}
