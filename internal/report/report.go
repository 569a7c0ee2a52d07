// Package report exports a summary of each mining run to blob storage and
// announces it on a message topic.
package report

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/JakeFAU/contact-miner/internal/dispatcher"
	"github.com/JakeFAU/contact-miner/internal/miner"
)

// BlobStore persists report documents.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Publisher announces finished runs.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock stamps reports that carry no finish time.
type Clock interface {
	Now() time.Time
}

// Hasher digests stored report documents.
type Hasher interface {
	Hash(data []byte) (string, error)
}

type utcClock struct{}

func (utcClock) Now() time.Time { return time.Now().UTC() }

type sha256Hasher struct{}

func (sha256Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Counts mirrors miner.Stats in the report document.
type Counts struct {
	WithWebsite int64 `json:"with_website"`
	Done        int64 `json:"done"`
	Failed      int64 `json:"failed"`
	Pending     int64 `json:"pending"`
}

// Run is the report document for one mining run.
type Run struct {
	RunID       string    `json:"run_id"`
	FinishedAt  time.Time `json:"finished_at"`
	Interrupted bool      `json:"interrupted"`
	Rounds      int       `json:"rounds"`
	Batches     int       `json:"batches"`
	BatchErrors int       `json:"batch_errors"`
	Processed   int       `json:"processed"`
	Done        int       `json:"done"`
	Failed      int       `json:"failed"`
	Reset       int64     `json:"reset"`
	Before      Counts    `json:"before"`
	After       Counts    `json:"after"`
	URI         string    `json:"uri,omitempty"`
	// SHA256 is the digest of the stored document. Only published messages
	// carry it.
	SHA256 string `json:"sha256,omitempty"`
}

// FromSummary builds the report document for a dispatcher summary. The
// exporter stamps FinishedAt.
func FromSummary(s dispatcher.Summary, interrupted bool) Run {
	return Run{
		RunID:       s.RunID,
		Interrupted: interrupted,
		Rounds:      s.Rounds,
		Batches:     s.Batches,
		BatchErrors: s.BatchErrors,
		Processed:   s.Processed,
		Done:        s.Done,
		Failed:      s.Failed,
		Reset:       s.Reset,
		Before:      countsFrom(s.Before),
		After:       countsFrom(s.After),
	}
}

func countsFrom(s miner.Stats) Counts {
	return Counts{WithWebsite: s.WithWebsite, Done: s.Done, Failed: s.Failed, Pending: s.Pending}
}

// Config controls where reports go.
type Config struct {
	// Prefix is the object path prefix for report documents.
	Prefix string
	// Topic receives one message per exported run.
	Topic string
	// Clock defaults to UTC wall time.
	Clock Clock
	// Hasher defaults to SHA-256.
	Hasher Hasher
}

// Exporter writes run reports. Either sink may be nil.
type Exporter struct {
	blobs     BlobStore
	publisher Publisher
	cfg       Config
	logger    *zap.Logger
}

// NewExporter creates an Exporter.
func NewExporter(blobs BlobStore, publisher Publisher, cfg Config, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "runs"
	}
	if cfg.Clock == nil {
		cfg.Clock = utcClock{}
	}
	if cfg.Hasher == nil {
		cfg.Hasher = sha256Hasher{}
	}
	return &Exporter{
		blobs:     blobs,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Enabled reports whether any sink is configured.
func (e *Exporter) Enabled() bool {
	return e != nil && (e.blobs != nil || e.publisher != nil)
}

// Export stores the report and then publishes it, carrying the stored URI.
// Both sinks are attempted; their errors are combined.
func (e *Exporter) Export(ctx context.Context, run Run) (Run, error) {
	if !e.Enabled() {
		return run, nil
	}
	if run.RunID == "" {
		return run, fmt.Errorf("run id is required")
	}
	logger := e.logger.With(zap.String("run_id", run.RunID))
	if run.FinishedAt.IsZero() {
		run.FinishedAt = e.cfg.Clock.Now()
	}

	var errs error
	if e.blobs != nil {
		data, err := json.MarshalIndent(run, "", "  ")
		if err != nil {
			return run, fmt.Errorf("marshal run report: %w", err)
		}
		objectPath := path.Join(e.cfg.Prefix, run.RunID+".json")
		uri, err := e.blobs.PutObject(ctx, objectPath, "application/json", bytes.NewReader(data))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("store run report: %w", err))
		} else {
			run.URI = uri
			logger.Info("run report stored", zap.String("uri", uri))
		}
		if digest, err := e.cfg.Hasher.Hash(data); err != nil {
			logger.Warn("hash run report", zap.Error(err))
		} else if run.URI != "" {
			run.SHA256 = digest
		}
	}
	if e.publisher != nil && e.cfg.Topic != "" {
		id, err := e.publisher.Publish(ctx, e.cfg.Topic, run)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("publish run report: %w", err))
		} else {
			logger.Info("run report published", zap.String("topic", e.cfg.Topic), zap.String("message_id", id))
		}
	}
	return run, errs
}
