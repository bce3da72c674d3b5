package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"folio/internal/comic"
	"folio/internal/services"
)

const comicColumns = "id, state, filename, archive_type, missing, file_size, file_hash, contents_loaded, blocked_pages_marked, blocked_pages, recreating, publisher, series, volume, issue, title, created_at, updated_at"

func scanComic(scanner interface{ Scan(dest ...any) error }) (*comic.Record, error) {
	var (
		id             int64
		state          string
		filename       string
		archiveType    sql.NullString
		missing        int
		fileSize       sql.NullInt64
		fileHash       sql.NullString
		contentsLoaded int
		blockedMarked  int
		blockedPages   int
		recreating     int
		publisher      sql.NullString
		series         sql.NullString
		volume         sql.NullString
		issue          sql.NullString
		title          sql.NullString
		createdRaw     sql.NullString
		updatedRaw     sql.NullString
	)
	if err := scanner.Scan(
		&id, &state, &filename, &archiveType, &missing, &fileSize, &fileHash,
		&contentsLoaded, &blockedMarked, &blockedPages, &recreating,
		&publisher, &series, &volume, &issue, &title, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	parsed, err := comic.ParseState(state)
	if err != nil {
		return nil, fmt.Errorf("comic %d: %w", id, err)
	}
	record := &comic.Record{
		ID:                 id,
		State:              parsed,
		Filename:           filename,
		ArchiveType:        comic.ArchiveType(archiveType.String),
		Missing:            missing != 0,
		ContentsLoaded:     contentsLoaded != 0,
		BlockedPagesMarked: blockedMarked != 0,
		BlockedPages:       blockedPages,
		Recreating:         recreating != 0,
		Publisher:          publisher.String,
		Series:             series.String,
		Volume:             volume.String,
		Issue:              issue.String,
		Title:              title.String,
		CreatedAt:          parseNullTime(createdRaw),
		UpdatedAt:          parseNullTime(updatedRaw),
	}
	if fileSize.Valid || fileHash.Valid {
		record.FileDetails = &comic.FileDetails{Size: fileSize.Int64, Hash: fileHash.String}
	}
	return record, nil
}

// Find loads a record by identifier. A missing record is ErrNotFound.
func (s *Store) Find(ctx context.Context, id int64) (*comic.Record, error) {
	q, _ := s.conn(ctx)
	row := q.QueryRowContext(ctx, `SELECT `+comicColumns+` FROM comics WHERE id = ?`, id)
	record, err := scanComic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "find comic", fmt.Sprintf("id %d", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("find comic: %w", err)
	}
	return record, nil
}

// FindByFilename returns the record for filename, or nil when none exists.
func (s *Store) FindByFilename(ctx context.Context, filename string) (*comic.Record, error) {
	q, _ := s.conn(ctx)
	row := q.QueryRowContext(ctx, `SELECT `+comicColumns+` FROM comics WHERE filename = ?`, filename)
	record, err := scanComic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find comic by filename: %w", err)
	}
	return record, nil
}

// FindBatch returns up to limit records matching criteria with id greater
// than afterID, ordered by id. Callers page by passing the last id seen.
func (s *Store) FindBatch(ctx context.Context, criteria comic.Criteria, afterID int64, limit int) ([]*comic.Record, error) {
	if err := criteria.Validate(); err != nil {
		return nil, services.Wrap(services.ErrValidation, "store", "find batch", "", err)
	}
	if limit <= 0 {
		return nil, services.Wrap(services.ErrValidation, "store", "find batch", fmt.Sprintf("limit must be positive, got %d", limit), nil)
	}
	where, args, err := compileCriteria(criteria)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "store", "find batch", "", err)
	}
	query := `SELECT ` + comicColumns + ` FROM comics WHERE id > ? AND (` + where + `) ORDER BY id LIMIT ?`
	args = append([]any{afterID}, args...)
	args = append(args, limit)

	q, _ := s.conn(ctx)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find batch: %w", err)
	}
	defer rows.Close()

	var records []*comic.Record
	for rows.Next() {
		record, err := scanComic(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Save inserts a new record (ID 0) or updates an existing one. Timestamps
// are maintained by the store.
func (s *Store) Save(ctx context.Context, record *comic.Record) error {
	if record == nil {
		return errors.New("record is nil")
	}
	if !record.State.Valid() {
		return services.Wrap(services.ErrValidation, "store", "save comic", fmt.Sprintf("invalid state %q", record.State), nil)
	}
	now := time.Now().UTC()
	var (
		size any
		hash any
	)
	if record.FileDetails != nil {
		size = record.FileDetails.Size
		hash = nullableString(record.FileDetails.Hash)
	}

	if record.ID == 0 {
		if record.CreatedAt.IsZero() {
			record.CreatedAt = now
		}
		record.UpdatedAt = now
		res, err := s.execWithRetry(ctx,
			`INSERT INTO comics (
                state, filename, archive_type, missing, file_size, file_hash,
                contents_loaded, blocked_pages_marked, blocked_pages, recreating,
                publisher, series, volume, issue, title, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(record.State), record.Filename, nullableString(string(record.ArchiveType)),
			boolToInt(record.Missing), size, hash,
			boolToInt(record.ContentsLoaded), boolToInt(record.BlockedPagesMarked), record.BlockedPages,
			boolToInt(record.Recreating),
			nullableString(record.Publisher), nullableString(record.Series), nullableString(record.Volume),
			nullableString(record.Issue), nullableString(record.Title),
			formatTime(record.CreatedAt), formatTime(record.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert comic: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		record.ID = id
		return nil
	}

	record.UpdatedAt = now
	res, err := s.execWithRetry(ctx,
		`UPDATE comics
         SET state = ?, filename = ?, archive_type = ?, missing = ?, file_size = ?, file_hash = ?,
             contents_loaded = ?, blocked_pages_marked = ?, blocked_pages = ?, recreating = ?,
             publisher = ?, series = ?, volume = ?, issue = ?, title = ?, updated_at = ?
         WHERE id = ?`,
		string(record.State), record.Filename, nullableString(string(record.ArchiveType)),
		boolToInt(record.Missing), size, hash,
		boolToInt(record.ContentsLoaded), boolToInt(record.BlockedPagesMarked), record.BlockedPages,
		boolToInt(record.Recreating),
		nullableString(record.Publisher), nullableString(record.Series), nullableString(record.Volume),
		nullableString(record.Issue), nullableString(record.Title),
		formatTime(record.UpdatedAt),
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("update comic: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return services.Wrap(services.ErrNotFound, "store", "update comic", fmt.Sprintf("id %d", record.ID), nil)
	}
	return nil
}

// Delete removes the record row. The transition log keeps its history.
func (s *Store) Delete(ctx context.Context, record *comic.Record) error {
	if record == nil || record.ID == 0 {
		return errors.New("record has no identifier")
	}
	if _, err := s.execWithRetry(ctx, `DELETE FROM comics WHERE id = ?`, record.ID); err != nil {
		return fmt.Errorf("delete comic: %w", err)
	}
	return nil
}

// Stats returns a count of records grouped by state.
func (s *Store) Stats(ctx context.Context) (map[comic.State]int, error) {
	q, _ := s.conn(ctx)
	rows, err := q.QueryContext(ctx, `SELECT state, COUNT(1) FROM comics GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("comic stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[comic.State]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[comic.State(state)] = count
	}
	return stats, rows.Err()
}

// Count returns how many records match criteria.
func (s *Store) Count(ctx context.Context, criteria comic.Criteria) (int, error) {
	if err := criteria.Validate(); err != nil {
		return 0, services.Wrap(services.ErrValidation, "store", "count comics", "", err)
	}
	where, args, err := compileCriteria(criteria)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "store", "count comics", "", err)
	}
	q, _ := s.conn(ctx)
	var count int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(1) FROM comics WHERE `+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count comics: %w", err)
	}
	return count, nil
}
