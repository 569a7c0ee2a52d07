package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print item counts by state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := appInstance.Store().Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("load stats: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "with website: %d\n", stats.WithWebsite)
			fmt.Fprintf(out, "done:         %d\n", stats.Done)
			fmt.Fprintf(out, "failed:       %d\n", stats.Failed)
			fmt.Fprintf(out, "pending:      %d\n", stats.Pending)
			return nil
		},
	}
}
