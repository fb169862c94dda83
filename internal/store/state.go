// Package store keeps a small local state database so repeat runs skip
// article URLs that were already fetched and judged. The pipeline is
// correct without it (deduplication catches restatements); the store only
// saves fetches and model calls.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS seen_articles (
	url     TEXT PRIMARY KEY,
	outcome TEXT NOT NULL,
	seen_at TEXT NOT NULL
);
`

// Store is a sqlite-backed seen-URL cache.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the state database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("state database path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init state database schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Seen reports whether url was already processed.
func (s *Store) Seen(ctx context.Context, url string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM seen_articles WHERE url = ?`, url).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query seen article: %w", err)
	}
	return true, nil
}

// MarkSeen records the processing outcome for url.
func (s *Store) MarkSeen(ctx context.Context, url, outcome string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO seen_articles (url, outcome, seen_at) VALUES (?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET outcome = excluded.outcome, seen_at = excluded.seen_at`,
		url, outcome, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("mark article seen: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
