package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// BlockHash registers an archive content hash whose pages are blocked.
func (s *Store) BlockHash(ctx context.Context, hash string, pages int, note string) error {
	hash = strings.ToLower(strings.TrimSpace(hash))
	if hash == "" {
		return errors.New("hash is required")
	}
	if pages <= 0 {
		pages = 1
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO blocked_hashes (hash, pages, note, created_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(hash) DO UPDATE SET pages = excluded.pages, note = excluded.note`,
		hash, pages, nullableString(note), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("block hash: %w", err)
	}
	return nil
}

// BlockedPages returns the number of blocked pages registered for hash,
// zero when it is not blocked.
func (s *Store) BlockedPages(ctx context.Context, hash string) (int, error) {
	q, _ := s.conn(ctx)
	var pages int
	err := q.QueryRowContext(ctx,
		`SELECT pages FROM blocked_hashes WHERE hash = ?`, strings.ToLower(strings.TrimSpace(hash)),
	).Scan(&pages)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("lookup blocked hash: %w", err)
	}
	return pages, nil
}
