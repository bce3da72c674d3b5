package comic

import "time"

// Descriptor announces a newly discovered archive file awaiting import.
type Descriptor struct {
	ID         int64
	Filename   string
	EnqueuedAt time.Time
}
