// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/sitecrawl/internal/crawler"
)

const defaultTable = "crawl_pages"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for page rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// PageStore writes the sealed pages of a session into Postgres.
type PageStore struct {
	pool  pool
	table string
}

// NewPageStore connects a pool using cfg.
func NewPageStore(ctx context.Context, cfg Config) (*PageStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres.dsn is required")
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
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PageStore{pool: p, table: table}, nil
}

// NewPageStoreWithPool builds a store around an existing pool.
func NewPageStoreWithPool(p pool, table string) (*PageStore, error) {
	if p == nil {
		return nil, errors.New("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &PageStore{pool: p, table: name}, nil
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

// Close releases the pool.
func (s *PageStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the page table when missing.
func (s *PageStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	session_id    TEXT        NOT NULL,
	url           TEXT        NOT NULL,
	title         TEXT        NOT NULL DEFAULT '',
	body_text     TEXT        NOT NULL DEFAULT '',
	word_count    INTEGER     NOT NULL,
	category      TEXT        NOT NULL DEFAULT '',
	language      TEXT        NOT NULL DEFAULT '',
	content_hash  TEXT        NOT NULL DEFAULT '',
	status_code   INTEGER     NOT NULL,
	used_headless BOOLEAN     NOT NULL DEFAULT FALSE,
	fetched_at    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (session_id, url)
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// SavePages inserts every page in one transaction. Rows already present for
// the session are left untouched.
func (s *PageStore) SavePages(ctx context.Context, sessionID string, pages []crawler.PageResult) (err error) {
	if s == nil || s.pool == nil {
		return errors.New("page store is not configured")
	}
	if sessionID == "" {
		return errors.New("session id is required")
	}
	if len(pages) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
			}
		}
	}()

	query := fmt.Sprintf(`
INSERT INTO %s (
	session_id,
	url,
	title,
	body_text,
	word_count,
	category,
	language,
	content_hash,
	status_code,
	used_headless,
	fetched_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
) ON CONFLICT (session_id, url) DO NOTHING`, s.table)

	for _, page := range pages {
		if _, err = tx.Exec(ctx, query,
			sessionID,
			page.URL,
			page.Title,
			page.Text,
			page.WordCount,
			page.Category,
			page.Language,
			page.ContentHash,
			page.StatusCode,
			page.UsedHeadless,
			page.FetchedAt,
		); err != nil {
			return fmt.Errorf("insert page %s: %w", page.URL, err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
