// Package postgres exports harvested records into a Postgres table.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/catalog-harvester/internal/catalog"
)

const defaultTable = "catalog_items"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ItemStoreConfig controls the Postgres connection pool used for exports.
type ItemStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// ItemStore upserts catalog records keyed by their catalog ID.
type ItemStore struct {
	pool  execCloser
	table string
}

// NewItemStore connects to Postgres using the provided config.
func NewItemStore(ctx context.Context, cfg ItemStoreConfig) (*ItemStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("export.dsn is required")
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
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ItemStore{pool: pool, table: table}, nil
}

// NewItemStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewItemStoreWithPool(pool execCloser, table string) (*ItemStore, error) {
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
		table = defaultTable
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

// EnsureTable creates the export table when it does not exist yet.
func (s *ItemStore) EnsureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id BIGINT PRIMARY KEY,
	found BOOLEAN NOT NULL,
	name TEXT,
	infohash TEXT,
	category TEXT,
	total_size BIGINT,
	uploaded_at TIMESTAMPTZ,
	scraped_at TIMESTAMPTZ,
	payload JSONB
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// UpsertRecord writes one record. Tombstones keep only the ID with found=false.
func (s *ItemStore) UpsertRecord(ctx context.Context, id uint64, rec catalog.Record) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("item store is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	found,
	name,
	infohash,
	category,
	total_size,
	uploaded_at,
	scraped_at,
	payload
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)
ON CONFLICT (id) DO UPDATE SET
	found = EXCLUDED.found,
	name = EXCLUDED.name,
	infohash = EXCLUDED.infohash,
	category = EXCLUDED.category,
	total_size = EXCLUDED.total_size,
	uploaded_at = EXCLUDED.uploaded_at,
	scraped_at = EXCLUDED.scraped_at,
	payload = EXCLUDED.payload`, s.table)

	args, err := recordArgs(id, rec)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert item %d: %w", id, err)
	}
	return nil
}

func recordArgs(id uint64, rec catalog.Record) ([]any, error) {
	item, ok := rec.Item()
	if !ok {
		return []any{int64(id), false, nil, nil, nil, nil, nil, nil, nil}, nil
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("marshal item %d: %w", id, err)
	}
	return []any{
		int64(id),
		true,
		item.Name,
		item.InfoHash,
		item.Category,
		int64(item.TotalSize),
		item.UploadedAt.Time(),
		item.ScrapedAt.Time(),
		payload,
	}, nil
}
