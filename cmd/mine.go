package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/contact-miner/internal/report"
)

// newMineCmd creates the 'mine' subcommand, which runs every round over the
// pending items in the store.
func newMineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mine",
		Short: "Mine contact emails for every pending item",
		Long: `Pulls pending items from the store in batches, crawls each website
with one browser session per lane and writes the emails found back to the
store. Failed items are reset and retried for --retries extra rounds.`,
		Args: cobra.NoArgs,
		RunE: runMineCommand,
	}
	flags := cmd.Flags()
	flags.Int("concurrency", 3, "parallel lanes per batch")
	flags.Int("retries", 3, "extra rounds after the first")
	flags.Int("batch-size", 200, "max items per batch")
	flags.Duration("item-timeout", 0, "per-item crawl budget (0 uses the config value)")
	flags.Bool("metrics", false, "serve /metrics and /v1/stats while mining")
	flags.Int("metrics-port", 9090, "port for the metrics server")
	flags.String("report", "none", "run report destination: none, local or gcs")
	return cmd
}

func runMineCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()

	d, err := appInstance.NewDispatcher()
	if err != nil {
		return err
	}

	serverCtx, stopServer := context.WithCancel(cmd.Context())
	serverDone := appInstance.StartMetricsServer(serverCtx)
	defer func() {
		stopServer()
		<-serverDone
	}()

	summary, err := d.Run(cmd.Context())
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run miner: %w", err)
	}
	interrupted := err != nil
	if interrupted {
		logger.Warn("mining interrupted", zap.Error(err))
	}

	run, exportErr := appInstance.Exporter().Export(
		context.WithoutCancel(cmd.Context()),
		report.FromSummary(summary, interrupted),
	)
	if exportErr != nil {
		logger.Error("run report export failed", zap.Error(exportErr))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: %d rounds, %d batches (%d failed), %d done, %d failed, %d reset\n",
		summary.RunID, summary.Rounds, summary.Batches, summary.BatchErrors,
		summary.Done, summary.Failed, summary.Reset)
	fmt.Fprintf(out, "pending %d, done %d, failed %d\n",
		summary.After.Pending, summary.After.Done, summary.After.Failed)
	if run.URI != "" {
		fmt.Fprintf(out, "report %s\n", run.URI)
	}
	return nil
}
