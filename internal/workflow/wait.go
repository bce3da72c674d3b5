package workflow

import (
	"context"
	"time"
)

// WaitForWork polls probe every interval until it reports work, timeout
// elapses, or ctx is done. It returns false without error on timeout.
func WaitForWork(ctx context.Context, probe Probe, timeout, interval time.Duration) (bool, error) {
	if interval <= 0 {
		interval = time.Second
	}
	deadline := time.Now().Add(timeout)
	for {
		busy, err := probe(ctx)
		if err != nil || busy {
			return busy, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(min(interval, remaining)):
		}
	}
}
