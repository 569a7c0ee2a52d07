// Package cmd defines and implements the CLI commands for the contactminer
// executable.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newCrawlCmd creates the 'crawl' subcommand, which mines a single website
// without touching the store.
func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl <website>",
		Short: "Crawl one website and print the emails found",
		Args:  cobra.ExactArgs(1),
		RunE:  runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, args []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	engine, err := appInstance.NewEngine()
	if err != nil {
		return err
	}
	session, err := appInstance.Sessions().NewSession(cmd.Context())
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			appInstance.Logger().Warn("failed to close session", zap.Error(cerr))
		}
	}()

	emails, err := engine.Crawl(cmd.Context(), session, args[0])
	if err != nil {
		return fmt.Errorf("crawl %s: %w", args[0], err)
	}
	for _, email := range emails {
		fmt.Fprintln(cmd.OutOrStdout(), email)
	}
	return nil
}
