package batch

import (
	"errors"
	"fmt"
)

// ErrJobRunning is returned when a run is requested for a job name that
// already has an active run.
var ErrJobRunning = errors.New("batch: job already running")

// ChunkError reports the chunk that failed and the phase it failed in.
type ChunkError struct {
	Step  string
	Chunk int
	Phase string // read, process, write
	Item  int    // position within the chunk for process failures, else -1
	Err   error
}

func (e *ChunkError) Error() string {
	if e.Phase == phaseProcess && e.Item >= 0 {
		return fmt.Sprintf("step %s chunk %d: %s item %d: %v", e.Step, e.Chunk, e.Phase, e.Item, e.Err)
	}
	return fmt.Sprintf("step %s chunk %d: %s: %v", e.Step, e.Chunk, e.Phase, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

// IsWriteFailure reports whether err came from a chunk writer.
func IsWriteFailure(err error) bool {
	var ce *ChunkError
	return errors.As(err, &ce) && ce.Phase == phaseWrite
}

const (
	phaseRead    = "read"
	phaseProcess = "process"
	phaseWrite   = "write"
)
