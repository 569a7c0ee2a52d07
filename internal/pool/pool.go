// Package pool provisions the page-fetch sessions used by one batch.
package pool

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/contact-miner/internal/miner"
)

// Pool owns exactly one session per lane for the lifetime of a batch.
type Pool struct {
	sessions []miner.Session
	logger   *zap.Logger
	once     sync.Once
}

// AcquireAll creates n fresh sessions concurrently. Creation is
// all-or-nothing: when any session fails to start, the ones already created
// are closed and the error is returned.
func AcquireAll(ctx context.Context, factory miner.SessionFactory, n int, logger *zap.Logger) (*Pool, error) {
	if n < 1 {
		return nil, fmt.Errorf("pool size must be >= 1, got %d", n)
	}
	if factory == nil {
		return nil, fmt.Errorf("session factory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sessions := make([]miner.Session, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := range sessions {
		g.Go(func() error {
			s, err := factory.NewSession(gctx)
			if err != nil {
				return fmt.Errorf("create session %d: %w", i, err)
			}
			sessions[i] = s
			return nil
		})
	}
	p := &Pool{sessions: sessions, logger: logger}
	if err := g.Wait(); err != nil {
		p.ReleaseAll()
		return nil, err
	}
	logger.Debug("session pool ready", zap.Int("sessions", n))
	return p, nil
}

// Sessions returns the pooled sessions in lane order.
func (p *Pool) Sessions() []miner.Session {
	return p.sessions
}

// Size reports the number of pooled sessions.
func (p *Pool) Size() int {
	return len(p.sessions)
}

// ReleaseAll closes every session. Close failures are logged and swallowed so
// one broken session never keeps the others open. Calling it again is a no-op.
func (p *Pool) ReleaseAll() {
	if p == nil {
		return
	}
	p.once.Do(func() {
		var errs error
		for i, s := range p.sessions {
			if s == nil {
				continue
			}
			if err := closeSession(s); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("close session %d: %w", i, err))
			}
		}
		if errs != nil {
			p.logger.Warn("session pool released with errors",
				zap.Int("failures", len(multierr.Errors(errs))),
				zap.Error(errs),
			)
			return
		}
		p.logger.Debug("session pool released", zap.Int("sessions", len(p.sessions)))
	})
}

func closeSession(s miner.Session) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during close: %v", r)
		}
	}()
	return s.Close()
}
