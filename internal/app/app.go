// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/contact-miner/internal/api"
	"github.com/JakeFAU/contact-miner/internal/config"
	"github.com/JakeFAU/contact-miner/internal/crawler"
	"github.com/JakeFAU/contact-miner/internal/dispatcher"
	collyfetcher "github.com/JakeFAU/contact-miner/internal/fetcher/colly"
	"github.com/JakeFAU/contact-miner/internal/fetcher/headless"
	"github.com/JakeFAU/contact-miner/internal/metrics"
	"github.com/JakeFAU/contact-miner/internal/miner"
	pubsubpublisher "github.com/JakeFAU/contact-miner/internal/publisher/pubsub"
	"github.com/JakeFAU/contact-miner/internal/report"
	"github.com/JakeFAU/contact-miner/internal/storage/gcs"
	"github.com/JakeFAU/contact-miner/internal/storage/local"
	"github.com/JakeFAU/contact-miner/internal/storage/memory"
	"github.com/JakeFAU/contact-miner/internal/storage/postgres"
	"github.com/JakeFAU/contact-miner/internal/worker"
)

// App holds the shared services for one CLI invocation.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	store    miner.ItemStore
	sessions miner.SessionFactory
	exporter *report.Exporter
	closers  []func()
}

// New builds the item store and session factory selected by cfg. It fails
// fast when either cannot be initialized.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}

	store, err := newStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	sessions, closeSessions, err := newSessionFactory(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.sessions = sessions
	if closeSessions != nil {
		a.closers = append(a.closers, closeSessions)
	}

	if err := a.initExporter(ctx); err != nil {
		a.Close()
		return nil, err
	}

	logger.Info("application services initialized",
		zap.String("store", cfg.Store.Provider),
		zap.String("driver", cfg.Browser.Driver),
	)
	return a, nil
}

func newStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (miner.ItemStore, error) {
	switch cfg.Provider {
	case config.ProviderPostgres:
		logger.Info("connecting to postgres", zap.String("table", cfg.Table))
		store, err := postgres.NewItemStore(ctx, postgres.ItemStoreConfig{
			DSN:      cfg.DSN,
			Table:    cfg.Table,
			MaxConns: cfg.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres item store: %w", err)
		}
		return store, nil
	case config.ProviderMemory:
		logger.Info("using in-memory item store", zap.Int("seeded", len(cfg.SeedWebsites)))
		return memory.NewItemStoreFromWebsites(cfg.SeedWebsites), nil
	default:
		return nil, fmt.Errorf("unknown store provider: %s", cfg.Provider)
	}
}

func newSessionFactory(cfg config.Config) (miner.SessionFactory, func(), error) {
	switch cfg.Browser.Driver {
	case config.DriverChrome:
		factory, err := headless.NewFactory(headless.Config{
			Headless:          cfg.Miner.Headless,
			UserAgent:         cfg.Browser.UserAgent,
			NavigationTimeout: cfg.Browser.NavTimeout,
			ExecPath:          cfg.Browser.ExecPath,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init headless sessions: %w", err)
		}
		return factory, factory.Close, nil
	case config.DriverHTTP:
		return collyfetcher.NewFactory(collyfetcher.Config{
			UserAgent: cfg.Browser.UserAgent,
			Timeout:   cfg.Browser.NavTimeout,
		}), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown browser driver: %s", cfg.Browser.Driver)
	}
}

func (a *App) initExporter(ctx context.Context) error {
	cfg := a.cfg.Report
	var blobs report.BlobStore
	switch cfg.Provider {
	case config.ReportLocal:
		store, err := local.New(local.Config{BaseDir: cfg.Dir})
		if err != nil {
			return fmt.Errorf("init local report store: %w", err)
		}
		blobs = store
	case config.ReportGCS:
		store, err := gcs.New(ctx, gcs.Config{Bucket: cfg.Bucket})
		if err != nil {
			return fmt.Errorf("init gcs report store: %w", err)
		}
		blobs = store
		a.closers = append(a.closers, a.closeLogged("gcs report store", store.Close))
	}

	var publisher report.Publisher
	if cfg.PubSubTopic != "" {
		pub, err := pubsubpublisher.New(ctx, cfg.PubSubProject)
		if err != nil {
			return fmt.Errorf("init pubsub publisher: %w", err)
		}
		publisher = pub
		a.closers = append(a.closers, a.closeLogged("pubsub publisher", pub.Close))
	}

	a.exporter = report.NewExporter(blobs, publisher, report.Config{
		Prefix: cfg.Prefix,
		Topic:  cfg.PubSubTopic,
	}, a.logger.Named("report"))
	return nil
}

func (a *App) closeLogged(name string, closeFn func() error) func() {
	return func() {
		if err := closeFn(); err != nil {
			a.logger.Warn("error closing "+name, zap.Error(err))
		}
	}
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Store returns the configured item store.
func (a *App) Store() miner.ItemStore {
	return a.store
}

// Sessions returns the configured session factory.
func (a *App) Sessions() miner.SessionFactory {
	return a.sessions
}

// Exporter returns the run report exporter. It is never nil.
func (a *App) Exporter() *report.Exporter {
	return a.exporter
}

// NewEngine builds a crawl engine bounded by miner.max_depth.
func (a *App) NewEngine() (*crawler.Engine, error) {
	engine, err := crawler.NewEngine(crawler.Config{MaxDepth: a.cfg.Miner.MaxDepth}, a.logger.Named("crawler"))
	if err != nil {
		return nil, fmt.Errorf("init crawl engine: %w", err)
	}
	return engine, nil
}

// NewDispatcher wires engine, worker and dispatcher for a mining run.
func (a *App) NewDispatcher() (*dispatcher.Dispatcher, error) {
	engine, err := a.NewEngine()
	if err != nil {
		return nil, err
	}
	w := worker.New(engine, a.store, worker.Config{ItemTimeout: a.cfg.Miner.ItemTimeout}, a.logger.Named("worker"))
	d, err := dispatcher.New(a.store, a.sessions, w, dispatcher.Config{
		Concurrency: a.cfg.Miner.Concurrency,
		BatchSize:   a.cfg.Miner.BatchSize,
		Retries:     a.cfg.Miner.Retries,
	}, a.logger.Named("dispatcher"))
	if err != nil {
		return nil, fmt.Errorf("init dispatcher: %w", err)
	}
	return d, nil
}

// StartMetricsServer serves /metrics and /v1/stats in the background until
// ctx is done. It does nothing when metrics are disabled.
func (a *App) StartMetricsServer(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	if !a.cfg.Metrics.Enabled {
		close(done)
		return done
	}
	metrics.Init()
	server := api.NewServer(a.store, a.logger.Named("api"))
	addr := fmt.Sprintf(":%d", a.cfg.Metrics.Port)
	go func() {
		defer close(done)
		if err := server.ListenAndServe(ctx, addr); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("metrics server failed", zap.Error(err))
			done <- err
		}
	}()
	return done
}

// Close releases services in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
