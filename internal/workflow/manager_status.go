package workflow

import (
	"time"

	"folio/internal/batch"
)

// LaneStatus summarizes one lane.
type LaneStatus struct {
	Job        string
	Active     bool
	Runs       int
	Failures   int
	LastRunID  int64
	LastStatus batch.Status
	LastEnded  time.Time
	LastError  string
}

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running   bool
	LastError string
	Lanes     []LaneStatus
}

// Status returns the latest workflow information.
func (m *Manager) Status() StatusSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := StatusSummary{Running: m.running, Lanes: make([]LaneStatus, 0, len(m.laneOrder))}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	for _, name := range m.laneOrder {
		lane := m.lanes[name]
		summary.Lanes = append(summary.Lanes, LaneStatus{
			Job:        name,
			Active:     lane.active,
			Runs:       lane.runs,
			Failures:   lane.failures,
			LastRunID:  lane.lastRunID,
			LastStatus: lane.lastStatus,
			LastEnded:  lane.lastEnded,
			LastError:  lane.lastError,
		})
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setActive(lane *laneState, active bool) {
	m.mu.Lock()
	lane.active = active
	m.mu.Unlock()
}

func (m *Manager) recordRun(lane *laneState, run *batch.JobRun) {
	if run == nil {
		return
	}
	m.mu.Lock()
	lane.runs++
	lane.lastRunID = run.RunID
	lane.lastStatus = run.Status
	lane.lastEnded = run.EndedAt
	if run.Status == batch.StatusCompleted {
		lane.lastError = ""
	}
	m.mu.Unlock()
}

func (m *Manager) recordFailure(lane *laneState, err error) {
	m.mu.Lock()
	lane.failures++
	lane.lastError = err.Error()
	m.lastErr = err
	m.mu.Unlock()
}
