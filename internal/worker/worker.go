// Package worker implements the per-lane item processing loop.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/contact-miner/internal/metrics"
	"github.com/JakeFAU/contact-miner/internal/miner"
)

// Crawler finds the contact emails of one website using a session.
type Crawler interface {
	Crawl(ctx context.Context, session miner.Session, website string) ([]string, error)
}

// Config controls Worker behavior.
type Config struct {
	// ItemTimeout bounds a single item's crawl. Zero disables the bound.
	ItemTimeout time.Duration
}

// Worker mines items for one lane at a time and writes results back.
type Worker struct {
	crawler Crawler
	store   miner.ItemStore
	cfg     Config
	logger  *zap.Logger
}

// LaneReport counts what a lane did.
type LaneReport struct {
	Processed int
	Done      int
	Failed    int
	Persisted int
}

// Add merges other into r.
func (r *LaneReport) Add(other LaneReport) {
	r.Processed += other.Processed
	r.Done += other.Done
	r.Failed += other.Failed
	r.Persisted += other.Persisted
}

// New constructs a Worker.
func New(crawler Crawler, store miner.ItemStore, cfg Config, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		crawler: crawler,
		store:   store,
		cfg:     cfg,
		logger:  logger,
	}
}

// RunLane processes items in order against session. An item's failure is
// recorded on that item and never stops the lane. When ctx is done the lane
// stops before starting the next item.
func (w *Worker) RunLane(ctx context.Context, lane int, session miner.Session, items []miner.Item) (LaneReport, error) {
	var report LaneReport
	if len(items) == 0 {
		return report, nil
	}
	metrics.IncActiveLanes()
	defer metrics.DecActiveLanes()

	logger := w.logger.With(zap.Int("lane", lane))
	logger.Debug("lane started", zap.Int("items", len(items)))

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("lane %d stopped: %w", lane, err)
		}
		result := w.Mine(ctx, session, item)
		report.Processed++

		itemLogger := logger.With(zap.String("item_id", item.ID), zap.String("website", item.Website))
		if result.Succeeded() {
			report.Done++
			metrics.ObserveItem("done")
			itemLogger.Info("item mined", zap.Strings("emails", result.Emails))
		} else {
			report.Failed++
			metrics.ObserveItem("failed")
			itemLogger.Warn("failed to mine emails", zap.Error(result.Err))
		}

		if err := w.persist(ctx, result); err != nil {
			itemLogger.Error("persist result failed", zap.Error(err))
			continue
		}
		report.Persisted++
	}
	logger.Debug("lane finished",
		zap.Int("done", report.Done),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// Mine crawls one item and converts every failure, including panics, into a
// failed Result. The crawl is not interrupted by ctx cancellation; only the
// item timeout bounds it.
func (w *Worker) Mine(ctx context.Context, session miner.Session, item miner.Item) (result miner.Result) {
	result.Item = item
	defer func() {
		if r := recover(); r != nil {
			result.Emails = nil
			result.Err = fmt.Errorf("panic while mining: %v", r)
		}
	}()

	itemCtx := context.WithoutCancel(ctx)
	if w.cfg.ItemTimeout > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(itemCtx, w.cfg.ItemTimeout)
		defer cancel()
	}

	emails, err := w.crawler.Crawl(itemCtx, session, item.Website)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", w.cfg.ItemTimeout, err)
		}
		result.Err = err
		return result
	}
	result.Emails = emails
	return result
}

func (w *Worker) persist(ctx context.Context, result miner.Result) error {
	if err := w.store.SaveResult(context.WithoutCancel(ctx), result.Apply()); err != nil {
		return fmt.Errorf("save result for item %s: %w", result.Item.ID, err)
	}
	return nil
}
