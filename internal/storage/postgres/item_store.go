// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/contact-miner/internal/miner"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// failedPattern mirrors miner.MiningStatus.IsFailed for ILIKE filters.
const failedPattern = "%failed%"

// pendingPredicate selects items with a website, no email and no status.
const pendingPredicate = `website IS NOT NULL AND btrim(website) <> ''
	AND (email IS NULL OR cardinality(email) = 0)
	AND (mining_status IS NULL OR mining_status = '')`

// ItemStoreConfig controls the Postgres connection pool used for work items.
//
// The table is expected to look like:
//
//	CREATE TABLE items (
//		id            TEXT PRIMARY KEY,
//		website       TEXT,
//		email         TEXT[],
//		mining_status TEXT
//	);
type ItemStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// ItemStore reads pending items from and writes results to Postgres.
type ItemStore struct {
	pool  pgxPool
	table string
}

// NewItemStore creates a Postgres-backed ItemStore using the provided config.
func NewItemStore(ctx context.Context, cfg ItemStoreConfig) (*ItemStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &ItemStore{pool: pool, table: table}, nil
}

// NewItemStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewItemStoreWithPool(pool pgxPool, table string) (*ItemStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &ItemStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = "items"
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *ItemStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// FindPending returns up to limit pending items ordered by id.
func (s *ItemStore) FindPending(ctx context.Context, limit int) ([]miner.Item, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0, got %d", limit)
	}
	query := fmt.Sprintf(`SELECT id, website FROM %s WHERE %s ORDER BY id LIMIT $1`, s.table, pendingPredicate)
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending items: %w", err)
	}
	defer rows.Close()

	var items []miner.Item
	for rows.Next() {
		var item miner.Item
		if err := rows.Scan(&item.ID, &item.Website); err != nil {
			return nil, fmt.Errorf("scan pending item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending items: %w", err)
	}
	return items, nil
}

// SaveResult writes email and mining_status for one item.
func (s *ItemStore) SaveResult(ctx context.Context, item miner.Item) error {
	if item.ID == "" {
		return fmt.Errorf("item id is required")
	}
	query := fmt.Sprintf(`UPDATE %s SET email = $2, mining_status = $3 WHERE id = $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, item.ID, item.Email, string(item.MiningStatus))
	if err != nil {
		return fmt.Errorf("update item %s: %w", item.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item %s not found", item.ID)
	}
	return nil
}

// ResetFailed clears mining_status on every failed item.
func (s *ItemStore) ResetFailed(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`UPDATE %s SET mining_status = NULL WHERE mining_status ILIKE $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, failedPattern)
	if err != nil {
		return 0, fmt.Errorf("reset failed items: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Stats counts items by state in a single scan.
func (s *ItemStore) Stats(ctx context.Context) (miner.Stats, error) {
	query := fmt.Sprintf(`SELECT
	count(*) FILTER (WHERE website IS NOT NULL AND btrim(website) <> ''),
	count(*) FILTER (WHERE mining_status = $1),
	count(*) FILTER (WHERE mining_status ILIKE $2),
	count(*) FILTER (WHERE %s)
FROM %s`, pendingPredicate, s.table)

	var stats miner.Stats
	err := s.pool.QueryRow(ctx, query, string(miner.StatusDone), failedPattern).
		Scan(&stats.WithWebsite, &stats.Done, &stats.Failed, &stats.Pending)
	if err != nil {
		return miner.Stats{}, fmt.Errorf("query item stats: %w", err)
	}
	return stats, nil
}
