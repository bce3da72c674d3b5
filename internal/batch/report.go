package batch

import (
	"strconv"
	"time"
)

// Parameters are the named values a job run was launched with.
type Parameters map[string]string

// Get returns the value for key or "".
func (p Parameters) Get(key string) string {
	if p == nil {
		return ""
	}
	return p[key]
}

// Int returns key parsed as an integer, or fallback when absent or invalid.
func (p Parameters) Int(key string, fallback int) int {
	if v, err := strconv.Atoi(p.Get(key)); err == nil {
		return v
	}
	return fallback
}

// Bool returns key parsed as a boolean, or fallback when absent or invalid.
func (p Parameters) Bool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(p.Get(key)); err == nil {
		return v
	}
	return fallback
}

// Clone returns an independent copy that is never nil.
func (p Parameters) Clone() Parameters {
	clone := make(Parameters, len(p))
	for k, v := range p {
		clone[k] = v
	}
	return clone
}

// ChunkContext describes the chunk being assembled for listeners.
type ChunkContext struct {
	RunID    int64
	JobName  string
	StepName string
	Params   Parameters
	// Chunk is the 1-based index of the current chunk.
	Chunk int
	// Buffered is the number of items read into the current chunk.
	Buffered int
	// Committed counts chunks committed so far in this step run.
	Committed int
}

// ChunkResult summarises one chunk for listeners.
type ChunkResult struct {
	Read    int
	Skipped int
	Written int
	Retries int
	Elapsed time.Duration
	Err     error
}

// StepReport aggregates the outcome of one step run.
type StepReport struct {
	Name   string
	Status Status
	Read   int
	// Processed counts every item of a chunk whose processing phase finished,
	// including items the processor skipped. A chunk aborted by a processor
	// error adds nothing.
	Processed int
	Skipped   int
	// Written counts processor outputs handed to a committed write.
	Written   int
	Chunks    int
	Commits   int
	Rollbacks int
	Retries   int
	StartedAt time.Time
	EndedAt   time.Time
	Error     string
}

// Duration returns how long the step ran.
func (r StepReport) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}
