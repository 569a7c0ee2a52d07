// Package dispatcher runs mining rounds: it pulls pending items in batches,
// provisions one session per lane, fans the lanes out and resets failed items
// between rounds.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/contact-miner/internal/id/uuid"
	"github.com/JakeFAU/contact-miner/internal/metrics"
	"github.com/JakeFAU/contact-miner/internal/miner"
	"github.com/JakeFAU/contact-miner/internal/partition"
	"github.com/JakeFAU/contact-miner/internal/pool"
	"github.com/JakeFAU/contact-miner/internal/worker"
)

// Config controls round and batch sizing.
type Config struct {
	Concurrency int
	BatchSize   int
	// Retries is the number of extra rounds after the first.
	Retries int
	// IDs generates run IDs. Defaults to UUID v7.
	IDs IDGenerator
}

// IDGenerator creates run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Summary reports what a run did.
type Summary struct {
	RunID       string
	Rounds      int
	Batches     int
	BatchErrors int
	Processed   int
	Done        int
	Failed      int
	Reset       int64
	Before      miner.Stats
	After       miner.Stats
}

// Dispatcher drives rounds of batches against the item store.
type Dispatcher struct {
	store   miner.ItemStore
	factory miner.SessionFactory
	worker  *worker.Worker
	cfg     Config
	logger  *zap.Logger
}

// New creates a Dispatcher.
func New(store miner.ItemStore, factory miner.SessionFactory, w *worker.Worker, cfg Config, logger *zap.Logger) (*Dispatcher, error) {
	if store == nil {
		return nil, fmt.Errorf("item store is required")
	}
	if factory == nil {
		return nil, fmt.Errorf("session factory is required")
	}
	if w == nil {
		return nil, fmt.Errorf("worker is required")
	}
	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be >= 1, got %d", cfg.Concurrency)
	}
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("batch size must be >= 1, got %d", cfg.BatchSize)
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.IDs == nil {
		cfg.IDs = uuid.NewUUIDGenerator()
	}
	return &Dispatcher{
		store:   store,
		factory: factory,
		worker:  w,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Run executes 1+Retries rounds. Batch failures are logged and end the
// current round; they never end the run. Run returns an error when no run ID
// can be generated or when ctx is canceled, in which case in-flight items
// finish first.
func (d *Dispatcher) Run(ctx context.Context) (Summary, error) {
	var summary Summary
	runID, err := d.cfg.IDs.NewID()
	if err != nil {
		return summary, fmt.Errorf("generate run id: %w", err)
	}
	summary.RunID = runID
	logger := d.logger.With(zap.String("run_id", summary.RunID))

	summary.Before = d.logStats(ctx, logger, "stats before run")
	logger.Info("mining run started",
		zap.Int("rounds", d.cfg.Retries+1),
		zap.Int("concurrency", d.cfg.Concurrency),
		zap.Int("batch_size", d.cfg.BatchSize),
	)

	rounds := d.cfg.Retries + 1
	for round := 1; round <= rounds; round++ {
		summary.Rounds = round
		roundLogger := logger.With(zap.Int("round", round))
		if err := d.runRound(ctx, roundLogger, &summary); err != nil {
			return d.finish(ctx, logger, summary), err
		}
		if round == rounds {
			break
		}
		n, err := d.store.ResetFailed(ctx)
		if err != nil {
			roundLogger.Error("reset failed items", zap.Error(err))
			continue
		}
		summary.Reset += n
		metrics.ObserveItemsReset(n)
		roundLogger.Info("failed items reset", zap.Int64("count", n))
	}
	return d.finish(ctx, logger, summary), nil
}

func (d *Dispatcher) finish(ctx context.Context, logger *zap.Logger, summary Summary) Summary {
	summary.After = d.logStats(context.WithoutCancel(ctx), logger, "stats after run")
	logger.Info("mining run finished",
		zap.Int("rounds", summary.Rounds),
		zap.Int("batches", summary.Batches),
		zap.Int("batch_errors", summary.BatchErrors),
		zap.Int("done", summary.Done),
		zap.Int("failed", summary.Failed),
		zap.Int64("reset", summary.Reset),
	)
	return summary
}

// runRound pulls batches until none are pending. It returns an error only
// when ctx is canceled.
func (d *Dispatcher) runRound(ctx context.Context, logger *zap.Logger, summary *Summary) error {
	for batch := 1; ; batch++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("round stopped: %w", err)
		}
		batchLogger := logger.With(zap.Int("batch", batch))

		items, err := d.store.FindPending(ctx, d.cfg.BatchSize)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("round stopped: %w", ctxErr)
			}
			summary.BatchErrors++
			batchLogger.Error("query pending items failed, ending round", zap.Error(err))
			return nil
		}
		if len(items) == 0 {
			logger.Info("round complete", zap.Int("batches", batch-1))
			return nil
		}

		summary.Batches++
		report, err := d.runBatch(ctx, batchLogger, items)
		summary.Processed += report.Processed
		summary.Done += report.Done
		summary.Failed += report.Failed
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("round stopped: %w", ctxErr)
			}
			summary.BatchErrors++
			batchLogger.Error("batch failed, ending round", zap.Error(err))
			return nil
		}
	}
}

// runBatch provisions a fresh pool, runs one lane per session and tears the
// pool down regardless of outcome.
func (d *Dispatcher) runBatch(ctx context.Context, logger *zap.Logger, items []miner.Item) (worker.LaneReport, error) {
	var total worker.LaneReport
	start := time.Now()
	defer func() {
		metrics.ObserveBatchDuration(time.Since(start))
	}()

	logger.Info("batch started", zap.Int("items", len(items)))
	p, err := pool.AcquireAll(ctx, d.factory, d.cfg.Concurrency, logger)
	if err != nil {
		return total, fmt.Errorf("provision session pool: %w", err)
	}
	defer p.ReleaseAll()

	lanes := partition.Split(items, p.Size())
	sessions := p.Sessions()
	reports := make([]worker.LaneReport, len(lanes))

	var g errgroup.Group
	for i, lane := range lanes {
		g.Go(func() error {
			report, err := d.worker.RunLane(ctx, i, sessions[i], lane)
			reports[i] = report
			return err
		})
	}
	laneErr := g.Wait()
	for _, r := range reports {
		total.Add(r)
	}
	logger.Info("batch finished",
		zap.Int("processed", total.Processed),
		zap.Int("done", total.Done),
		zap.Int("failed", total.Failed),
		zap.Duration("elapsed", time.Since(start)),
	)
	if laneErr != nil {
		return total, laneErr
	}
	if total.Processed > 0 && total.Persisted == 0 {
		return total, fmt.Errorf("%w: %d items processed", miner.ErrNoProgress, total.Processed)
	}
	return total, nil
}

func (d *Dispatcher) logStats(ctx context.Context, logger *zap.Logger, msg string) miner.Stats {
	stats, err := d.store.Stats(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Warn("item stats unavailable", zap.Error(err))
		}
		return miner.Stats{}
	}
	logger.Info(msg,
		zap.Int64("with_website", stats.WithWebsite),
		zap.Int64("done", stats.Done),
		zap.Int64("failed", stats.Failed),
		zap.Int64("pending", stats.Pending),
	)
	return stats
}
