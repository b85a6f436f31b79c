// Package sqlite stores crawl pages in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/JakeFAU/sitecrawl/internal/crawler"
)

const schema = `
CREATE TABLE IF NOT EXISTS pages (
	session_id    TEXT    NOT NULL,
	url           TEXT    NOT NULL,
	title         TEXT    NOT NULL DEFAULT '',
	body_text     TEXT    NOT NULL DEFAULT '',
	word_count    INTEGER NOT NULL,
	category      TEXT    NOT NULL DEFAULT '',
	language      TEXT    NOT NULL DEFAULT '',
	content_hash  TEXT    NOT NULL DEFAULT '',
	status_code   INTEGER NOT NULL,
	used_headless INTEGER NOT NULL DEFAULT 0,
	fetched_at    TEXT    NOT NULL,
	PRIMARY KEY (session_id, url)
);
CREATE INDEX IF NOT EXISTS idx_pages_session_words ON pages(session_id, word_count DESC);
`

// PageStore persists pages with modernc.org/sqlite.
type PageStore struct {
	db   *sql.DB
	path string
}

// Open creates the parent directory and database file if needed.
func Open(path string) (*PageStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite.path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &PageStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *PageStore) Path() string { return s.path }

// Close closes the database.
func (s *PageStore) Close() error {
	return s.db.Close()
}

// SavePages inserts pages in one transaction, ignoring rows already stored for
// the session.
func (s *PageStore) SavePages(ctx context.Context, sessionID string, pages []crawler.PageResult) (err error) {
	if sessionID == "" {
		return errors.New("session id is required")
	}
	if len(pages) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
INSERT OR IGNORE INTO pages (
	session_id, url, title, body_text, word_count, category, language,
	content_hash, status_code, used_headless, fetched_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, page := range pages {
		if _, err = stmt.ExecContext(ctx,
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
			page.FetchedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("insert page %s: %w", page.URL, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListPages returns the stored pages of a session by word count descending.
func (s *PageStore) ListPages(ctx context.Context, sessionID string) ([]crawler.PageResult, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT url, title, body_text, word_count, category, language, content_hash,
       status_code, used_headless, fetched_at
FROM pages WHERE session_id = ?
ORDER BY word_count DESC, url ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query pages: %w", err)
	}
	defer rows.Close()

	var out []crawler.PageResult
	for rows.Next() {
		var (
			page    crawler.PageResult
			fetched string
		)
		if err := rows.Scan(
			&page.URL,
			&page.Title,
			&page.Text,
			&page.WordCount,
			&page.Category,
			&page.Language,
			&page.ContentHash,
			&page.StatusCode,
			&page.UsedHeadless,
			&fetched,
		); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		if page.FetchedAt, err = time.Parse(time.RFC3339Nano, fetched); err != nil {
			return nil, fmt.Errorf("parse fetched_at: %w", err)
		}
		out = append(out, page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	return out, nil
}
