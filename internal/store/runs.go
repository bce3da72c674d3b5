package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"folio/internal/batch"
	"folio/internal/services"
)

const runColumns = "run_id, job_name, correlation_id, parameters_json, status, iterations, error_message, created_at, started_at, ended_at"

// CreateRun inserts run and assigns its RunID. AUTOINCREMENT keeps ids
// strictly increasing even after rows are pruned.
func (s *Store) CreateRun(ctx context.Context, run *batch.JobRun) error {
	params, err := json.Marshal(run.Parameters)
	if err != nil {
		return fmt.Errorf("marshal run parameters: %w", err)
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO job_runs (job_name, correlation_id, parameters_json, status, iterations, error_message, created_at, started_at, ended_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.JobName, nullableString(run.CorrelationID), string(params), string(run.Status), run.Iterations,
		nullableString(run.Error), formatTime(run.CreatedAt), nullableTime(run.StartedAt), nullableTime(run.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	run.RunID = id
	return nil
}

// UpdateRun persists the run status and replaces its step reports.
func (s *Store) UpdateRun(ctx context.Context, run *batch.JobRun) error {
	return s.InChunk(ctx, func(ctx context.Context) error {
		res, err := s.execWithRetry(ctx,
			`UPDATE job_runs SET status = ?, iterations = ?, error_message = ?, started_at = ?, ended_at = ?
             WHERE run_id = ?`,
			string(run.Status), run.Iterations, nullableString(run.Error),
			nullableTime(run.StartedAt), nullableTime(run.EndedAt), run.RunID,
		)
		if err != nil {
			return fmt.Errorf("update job run: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return services.Wrap(services.ErrNotFound, "store", "update run", fmt.Sprintf("run %d", run.RunID), nil)
		}
		if _, err := s.execWithRetry(ctx, `DELETE FROM step_runs WHERE run_id = ?`, run.RunID); err != nil {
			return fmt.Errorf("clear step runs: %w", err)
		}
		for seq, step := range run.Steps {
			if _, err := s.execWithRetry(ctx,
				`INSERT INTO step_runs (
                    run_id, seq, name, status, read_count, processed_count, skipped_count, written_count,
                    chunks, commits, rollbacks, retries, started_at, ended_at, error_message
                ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				run.RunID, seq, step.Name, string(step.Status), step.Read, step.Processed, step.Skipped, step.Written,
				step.Chunks, step.Commits, step.Rollbacks, step.Retries,
				nullableTime(step.StartedAt), nullableTime(step.EndedAt), nullableString(step.Error),
			); err != nil {
				return fmt.Errorf("insert step run: %w", err)
			}
		}
		return nil
	})
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*batch.JobRun, error) {
	var (
		run         batch.JobRun
		correlation sql.NullString
		params      sql.NullString
		status      string
		errMsg      sql.NullString
		createdRaw  sql.NullString
		startedRaw  sql.NullString
		endedRaw    sql.NullString
	)
	if err := scanner.Scan(&run.RunID, &run.JobName, &correlation, &params, &status, &run.Iterations,
		&errMsg, &createdRaw, &startedRaw, &endedRaw); err != nil {
		return nil, err
	}
	parsed, err := batch.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("run %d: %w", run.RunID, err)
	}
	run.Status = parsed
	run.CorrelationID = correlation.String
	run.Error = errMsg.String
	run.CreatedAt = parseNullTime(createdRaw)
	run.StartedAt = parseNullTime(startedRaw)
	run.EndedAt = parseNullTime(endedRaw)
	run.Parameters = batch.Parameters{}
	if params.Valid && params.String != "" && params.String != "null" {
		if err := json.Unmarshal([]byte(params.String), &run.Parameters); err != nil {
			return nil, fmt.Errorf("run %d parameters: %w", run.RunID, err)
		}
	}
	return &run, nil
}

// GetRun loads a run with its step reports.
func (s *Store) GetRun(ctx context.Context, id int64) (*batch.JobRun, error) {
	q, _ := s.conn(ctx)
	run, err := scanRun(q.QueryRowContext(ctx, `SELECT `+runColumns+` FROM job_runs WHERE run_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get run", fmt.Sprintf("run %d", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	steps, err := s.stepRuns(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Steps = steps
	return run, nil
}

// ListRuns returns the most recent runs first, optionally for one job.
func (s *Store) ListRuns(ctx context.Context, jobName string, limit int) ([]*batch.JobRun, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + runColumns + ` FROM job_runs`
	var args []any
	if jobName = strings.TrimSpace(jobName); jobName != "" {
		query += ` WHERE job_name = ?`
		args = append(args, jobName)
	}
	query += ` ORDER BY run_id DESC LIMIT ?`
	args = append(args, limit)

	q, _ := s.conn(ctx)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	var runs []*batch.JobRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, run)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, run := range runs {
		steps, err := s.stepRuns(ctx, run.RunID)
		if err != nil {
			return nil, err
		}
		run.Steps = steps
	}
	return runs, nil
}

func (s *Store) stepRuns(ctx context.Context, runID int64) ([]batch.StepReport, error) {
	q, _ := s.conn(ctx)
	rows, err := q.QueryContext(ctx,
		`SELECT name, status, read_count, processed_count, skipped_count, written_count,
                chunks, commits, rollbacks, retries, started_at, ended_at, error_message
         FROM step_runs WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("list step runs: %w", err)
	}
	defer rows.Close()

	var steps []batch.StepReport
	for rows.Next() {
		var (
			step       batch.StepReport
			status     string
			startedRaw sql.NullString
			endedRaw   sql.NullString
			errMsg     sql.NullString
		)
		if err := rows.Scan(&step.Name, &status, &step.Read, &step.Processed, &step.Skipped, &step.Written,
			&step.Chunks, &step.Commits, &step.Rollbacks, &step.Retries, &startedRaw, &endedRaw, &errMsg); err != nil {
			return nil, err
		}
		step.Status = batch.Status(status)
		step.StartedAt = parseNullTime(startedRaw)
		step.EndedAt = parseNullTime(endedRaw)
		step.Error = errMsg.String
		steps = append(steps, step)
	}
	return steps, rows.Err()
}
