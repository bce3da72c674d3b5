package batch

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// Status is the lifecycle of a job run or step run.
type Status string

const (
	StatusInitial   Status = "INITIAL"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

var statusTransitions = map[Status][]Status{
	StatusInitial: {StatusRunning, StatusFailed},
	StatusRunning: {StatusCompleted, StatusFailed},
}

// ParseStatus normalizes a status name.
func ParseStatus(value string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(value)))
	switch status {
	case StatusInitial, StatusRunning, StatusCompleted, StatusFailed:
		return status, nil
	default:
		return "", fmt.Errorf("unknown run status %q", value)
	}
}

// ValidateTransition reports whether a run may move from s to next.
func (s Status) ValidateTransition(next Status) error {
	if slices.Contains(statusTransitions[s], next) {
		return nil
	}
	return fmt.Errorf("invalid run status transition from %s to %s", s, next)
}

// Terminal reports whether the run has finished.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// JobRun is one execution of a job.
type JobRun struct {
	JobName       string
	RunID         int64
	CorrelationID string
	Parameters    Parameters
	Status        Status
	Iterations    int
	Steps         []StepReport
	Error         string
	CreatedAt     time.Time
	StartedAt     time.Time
	EndedAt       time.Time
}

func (r *JobRun) transition(next Status) error {
	if err := r.Status.ValidateTransition(next); err != nil {
		return err
	}
	r.Status = next
	return nil
}

// Totals sums step counters across the run.
func (r *JobRun) Totals() StepReport {
	total := StepReport{Name: r.JobName, Status: r.Status}
	for _, step := range r.Steps {
		total.Read += step.Read
		total.Processed += step.Processed
		total.Skipped += step.Skipped
		total.Written += step.Written
		total.Chunks += step.Chunks
		total.Commits += step.Commits
		total.Rollbacks += step.Rollbacks
		total.Retries += step.Retries
	}
	return total
}

// RunRepository persists job runs. CreateRun assigns a RunID that is
// strictly greater than any previously assigned one.
type RunRepository interface {
	CreateRun(ctx context.Context, run *JobRun) error
	UpdateRun(ctx context.Context, run *JobRun) error
}

// MemoryRunRepository keeps runs in memory.
type MemoryRunRepository struct {
	mu     sync.Mutex
	nextID int64
	runs   []*JobRun
}

// NewMemoryRunRepository returns an empty repository.
func NewMemoryRunRepository() *MemoryRunRepository {
	return &MemoryRunRepository{}
}

func (m *MemoryRunRepository) CreateRun(_ context.Context, run *JobRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	run.RunID = m.nextID
	m.runs = append(m.runs, cloneRun(run))
	return nil
}

func (m *MemoryRunRepository) UpdateRun(_ context.Context, run *JobRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for idx, existing := range m.runs {
		if existing.RunID == run.RunID {
			m.runs[idx] = cloneRun(run)
			return nil
		}
	}
	return fmt.Errorf("run %d not found", run.RunID)
}

// Runs returns copies of every stored run in creation order.
func (m *MemoryRunRepository) Runs() []JobRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]JobRun, 0, len(m.runs))
	for _, run := range m.runs {
		out = append(out, *cloneRun(run))
	}
	return out
}

func cloneRun(run *JobRun) *JobRun {
	clone := *run
	clone.Parameters = run.Parameters.Clone()
	clone.Steps = append([]StepReport(nil), run.Steps...)
	return &clone
}
