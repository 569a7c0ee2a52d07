package miner

import "context"

// ItemStore persists work items. Implementations must make per-item reads and
// writes safe for concurrent lanes.
type ItemStore interface {
	// FindPending returns up to limit items that have a non-empty website,
	// no email and no mining status.
	FindPending(ctx context.Context, limit int) ([]Item, error)
	// SaveResult writes Email and MiningStatus for a single item.
	SaveResult(ctx context.Context, item Item) error
	// ResetFailed clears the status of every item whose status matches the
	// failed pattern and returns how many were reset.
	ResetFailed(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (Stats, error)
	Close()
}

// Session is a page-fetch session bound to one lane at a time.
type Session interface {
	// Navigate loads url; failures wrap ErrFetch.
	Navigate(ctx context.Context, url string) error
	// PageSource returns the HTML of the current page.
	PageSource(ctx context.Context) (string, error)
	// Links returns the anchors of the current page with absolute hrefs.
	Links(ctx context.Context) ([]Link, error)
	Close() error
}

// SessionFactory creates fresh sessions for the resource pool.
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}

// SessionFactoryFunc adapts a function to SessionFactory.
type SessionFactoryFunc func(ctx context.Context) (Session, error)

// NewSession calls f.
func (f SessionFactoryFunc) NewSession(ctx context.Context) (Session, error) {
	return f(ctx)
}
