package workflow

import (
	"context"
	"log/slog"
	"time"

	"folio/internal/batch"
)

// Builder assembles a job for one run.
type Builder interface {
	Build(name string, params batch.Parameters) (*batch.Job, error)
}

// Probe reports whether a lane's job has anything to read.
type Probe func(ctx context.Context) (bool, error)

// Lane runs one job whenever its probe finds work.
type Lane struct {
	Job    string
	Probe  Probe
	Params batch.Parameters
}

type laneState struct {
	lane   Lane
	logger *slog.Logger

	runs       int
	failures   int
	active     bool
	lastRunID  int64
	lastStatus batch.Status
	lastEnded  time.Time
	lastError  string
}
