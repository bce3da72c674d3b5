package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"folio/internal/batch"
	"folio/internal/logging"
)

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	lanes := make([]*laneState, 0, len(m.laneOrder))
	for _, name := range m.laneOrder {
		lanes = append(lanes, m.lanes[name])
	}
	if len(lanes) == 0 {
		m.mu.Unlock()
		return errors.New("workflow lanes not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	for _, lane := range lanes {
		lane.logger = m.laneLogger(lane)
	}
	m.wg.Add(len(lanes))
	m.mu.Unlock()

	for _, lane := range lanes {
		go m.runLane(runCtx, lane)
	}

	return nil
}

// Stop terminates background processing and waits for in-flight runs. A
// running job finishes its current chunk before it observes the stop.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) runLane(ctx context.Context, lane *laneState) {
	defer m.wg.Done()
	logger := lane.logger
	if logger == nil {
		logger = logging.NewNop()
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		busy, err := lane.lane.Probe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.setLastError(err)
			logger.Error("failed to probe for work",
				logging.Error(err),
				logging.String(logging.FieldEventType, "probe_failed"),
				logging.String(logging.FieldErrorHint, "check library database access"),
			)
			m.waitOrShutdown(ctx)
			continue
		}
		if !busy {
			m.waitOrShutdown(ctx)
			continue
		}

		if err := m.runPreflightChecks(ctx, logger); err != nil {
			m.setLastError(err)
			m.waitOrShutdown(ctx)
			continue
		}

		m.launch(ctx, lane, logger)
		m.waitOrShutdown(ctx)
	}
}

func (m *Manager) launch(ctx context.Context, lane *laneState, logger *slog.Logger) {
	params := lane.lane.Params.Clone()
	job, err := m.builder.Build(lane.lane.Job, params)
	if err != nil {
		m.recordFailure(lane, err)
		logger.Error("failed to build job",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_build_failed"),
			logging.String(logging.FieldErrorHint, "check the job configuration"),
		)
		return
	}

	m.setActive(lane, true)
	run, err := m.launcher.Run(ctx, job, params)
	m.setActive(lane, false)

	switch {
	case errors.Is(err, batch.ErrJobRunning):
		logger.Debug("job already running elsewhere; skipping launch",
			logging.String(logging.FieldEventType, "job_busy"),
		)
	case err != nil:
		m.recordRun(lane, run)
		m.recordFailure(lane, err)
		logging.ErrorWithContext(logger, "job run failed", "job_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the run with folio runs; committed chunks are kept"),
		)
	default:
		m.recordRun(lane, run)
	}
}

func (m *Manager) waitOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}
