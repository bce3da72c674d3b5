package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"folio/internal/comic"
)

// Enqueue appends filenames to the intake queue and returns how many were added.
func (s *Store) Enqueue(ctx context.Context, filenames ...string) (int, error) {
	added := 0
	err := s.InChunk(ctx, func(ctx context.Context) error {
		now := formatTime(time.Now())
		for _, name := range filenames {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if _, err := s.execWithRetry(ctx,
				`INSERT INTO intake_queue (filename, enqueued_at) VALUES (?, ?)`, name, now,
			); err != nil {
				return fmt.Errorf("enqueue %s: %w", name, err)
			}
			added++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// TakeDescriptors removes and returns up to limit queued descriptors in
// arrival order. Rows are deleted in the same transaction that reads them,
// so a descriptor is delivered at most once even if the caller later fails.
func (s *Store) TakeDescriptors(ctx context.Context, limit int) ([]comic.Descriptor, error) {
	if limit <= 0 {
		return nil, nil
	}
	var descriptors []comic.Descriptor
	err := s.InChunk(ctx, func(ctx context.Context) error {
		q, _ := s.conn(ctx)
		rows, err := q.QueryContext(ctx,
			`SELECT id, filename, enqueued_at FROM intake_queue ORDER BY id LIMIT ?`, limit)
		if err != nil {
			return fmt.Errorf("read intake queue: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				d        comic.Descriptor
				enqueued string
			)
			if err := rows.Scan(&d.ID, &d.Filename, &enqueued); err != nil {
				return err
			}
			d.EnqueuedAt, _ = parseTimeString(enqueued)
			descriptors = append(descriptors, d)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if len(descriptors) == 0 {
			return nil
		}
		args := make([]any, len(descriptors))
		for i, d := range descriptors {
			args[i] = d.ID
		}
		if _, err := s.execWithRetry(ctx,
			`DELETE FROM intake_queue WHERE id IN (`+makePlaceholders(len(args))+`)`, args...,
		); err != nil {
			return fmt.Errorf("consume intake queue: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return descriptors, nil
}

// PendingDescriptors reports how many descriptors wait in the intake queue.
func (s *Store) PendingDescriptors(ctx context.Context) (int, error) {
	q, _ := s.conn(ctx)
	var count int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(1) FROM intake_queue`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count intake queue: %w", err)
	}
	return count, nil
}
