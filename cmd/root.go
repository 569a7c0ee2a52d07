package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/contact-miner/internal/app"
	"github.com/JakeFAU/contact-miner/internal/config"
	"github.com/JakeFAU/contact-miner/internal/crawler"
	"github.com/JakeFAU/contact-miner/internal/dispatcher"
	"github.com/JakeFAU/contact-miner/internal/logging"
	"github.com/JakeFAU/contact-miner/internal/miner"
	"github.com/JakeFAU/contact-miner/internal/report"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands use. It allows a test
// app to be injected.
type App interface {
	Close()
	Config() config.Config
	Logger() *zap.Logger
	Store() miner.ItemStore
	Sessions() miner.SessionFactory
	NewEngine() (*crawler.Engine, error)
	NewDispatcher() (*dispatcher.Dispatcher, error)
	StartMetricsServer(ctx context.Context) <-chan error
	Exporter() *report.Exporter
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger)
}

// rootState holds the App built for the running command so it can be closed
// whether or not the command succeeded.
type rootState struct {
	app App
}

func (s *rootState) close() {
	if s.app == nil {
		return
	}
	logger := s.app.Logger()
	s.app.Close()
	_ = logger.Sync() //nolint:errcheck // best-effort flush
	s.app = nil
}

// newRootCmd creates and configures the root command.
func newRootCmd(state *rootState) *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "contactminer",
		Short: "Finds contact email addresses for the websites in an item store.",
		Long: `contactminer crawls each pending item's website a few links deep,
extracts the contact email addresses it finds and writes them back to the
item store. Items that fail are retried in later rounds.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Config is loaded here so flags of the running subcommand take part.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				_ = logger.Sync()
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			state.app = appInstance
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			state.close()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "path to a config file (yaml, json or toml)")
	flags.String("driver", config.DriverChrome, "page fetch driver: chrome or http")
	flags.String("store", config.ProviderPostgres, "item store: postgres or memory")
	flags.String("dsn", "", "postgres connection string")
	flags.String("table", "items", "postgres items table")
	flags.Bool("headless", true, "run chrome without a visible window")
	flags.Int("max-depth", 2, "crawl depth bound (1-3)")

	cmd.AddCommand(
		newMineCmd(),
		newCrawlCmd(),
		newResetCmd(),
		newStatsCmd(),
	)
	return cmd
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	state := &rootState{}
	err := newRootCmd(state).ExecuteContext(ctx)
	state.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
