package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"folio/internal/batch"
	"folio/internal/config"
	"folio/internal/preflight"
)

// Manager runs one polling worker per registered job lane. Distinct jobs run
// concurrently; the launcher keeps each job to one active run.
type Manager struct {
	cfg          *config.Config
	launcher     *batch.Launcher
	builder      Builder
	logger       *slog.Logger
	pollInterval time.Duration
	checks       func(context.Context) []preflight.Result

	lanes     map[string]*laneState
	laneOrder []string

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithPollInterval overrides jobs.poll_interval.
func WithPollInterval(interval time.Duration) ManagerOption {
	return func(m *Manager) {
		m.pollInterval = interval
	}
}

// WithPreflight replaces the checks run before every launch. A nil function
// disables them.
func WithPreflight(checks func(context.Context) []preflight.Result) ManagerOption {
	return func(m *Manager) {
		m.checks = checks
	}
}

// NewManager constructs a new workflow manager.
func NewManager(cfg *config.Config, launcher *batch.Launcher, builder Builder, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:          cfg,
		launcher:     launcher,
		builder:      builder,
		logger:       logger,
		pollInterval: cfg.PollInterval(),
		lanes:        make(map[string]*laneState),
	}
	m.checks = func(ctx context.Context) []preflight.Result {
		return preflight.RunAll(ctx, cfg)
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.pollInterval <= 0 {
		m.pollInterval = time.Second
	}
	return m
}

// Register adds a lane. Lanes cannot be added while the manager runs.
func (m *Manager) Register(lane Lane) error {
	if lane.Job == "" {
		return errors.New("lane job name is required")
	}
	if lane.Probe == nil {
		return fmt.Errorf("lane %s: probe is required", lane.Job)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("cannot register lanes while the workflow runs")
	}
	if _, ok := m.lanes[lane.Job]; ok {
		return fmt.Errorf("lane %s already registered", lane.Job)
	}
	m.lanes[lane.Job] = &laneState{lane: lane}
	m.laneOrder = append(m.laneOrder, lane.Job)
	return nil
}
