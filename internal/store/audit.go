package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"folio/internal/comic"
	"folio/internal/lifecycle"
	"folio/internal/services"
)

// TransitionEntry is one row of the transition audit log.
type TransitionEntry struct {
	ComicID int64
	Prior   comic.State
	Event   comic.Event
	Target  comic.State
	RunID   int64
	At      time.Time
}

// TransitionLog returns a machine listener that records every committed
// transition. Inside a chunk the row joins the chunk transaction, so a
// rolled back chunk leaves no audit trail.
func (s *Store) TransitionLog() lifecycle.Listener {
	return lifecycle.ListenerFunc(func(ctx context.Context, change lifecycle.Change) error {
		if change.Record == nil || change.Record.ID == 0 {
			return nil
		}
		var runID any
		if id, ok := services.RunIDFromContext(ctx); ok {
			runID = id
		}
		_, err := s.execWithRetry(ctx,
			`INSERT INTO transition_log (comic_id, prior_state, event, target_state, run_id, at)
             VALUES (?, ?, ?, ?, ?, ?)`,
			change.Record.ID, string(change.Prior), string(change.Event), string(change.Target),
			runID, formatTime(time.Now()),
		)
		if err != nil {
			return fmt.Errorf("record transition: %w", err)
		}
		return nil
	})
}

// History returns the recorded transitions for a comic, oldest first.
func (s *Store) History(ctx context.Context, comicID int64) ([]TransitionEntry, error) {
	q, _ := s.conn(ctx)
	rows, err := q.QueryContext(ctx,
		`SELECT comic_id, prior_state, event, target_state, run_id, at
         FROM transition_log WHERE comic_id = ? ORDER BY id`, comicID)
	if err != nil {
		return nil, fmt.Errorf("transition history: %w", err)
	}
	defer rows.Close()

	var entries []TransitionEntry
	for rows.Next() {
		var (
			entry  TransitionEntry
			prior  string
			event  string
			target string
			runID  sql.NullInt64
			atRaw  string
		)
		if err := rows.Scan(&entry.ComicID, &prior, &event, &target, &runID, &atRaw); err != nil {
			return nil, err
		}
		entry.Prior = comic.State(prior)
		entry.Event = comic.Event(event)
		entry.Target = comic.State(target)
		entry.RunID = runID.Int64
		entry.At, _ = parseTimeString(atRaw)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
