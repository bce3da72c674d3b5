package joblock

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"folio/internal/batch"
	"folio/internal/config"
	"folio/internal/naming"
)

// New builds the locker selected by jobs.lock_backend. The none backend
// returns a nil locker, leaving only in-process exclusion. The returned
// close function is never nil.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (batch.Locker, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Jobs.LockBackend {
	case config.LockBackendNone:
		return nil, noop, nil
	case config.LockBackendFile:
		locker, err := NewFileLocker(cfg.Paths.LockDir)
		if err != nil {
			return nil, noop, err
		}
		return locker, noop, nil
	case config.LockBackendRedis:
		locker, err := NewRedisLocker(ctx, cfg.Jobs.RedisURL, cfg.LockTTL(), logger)
		if err != nil {
			return nil, noop, err
		}
		return locker, locker.Close, nil
	default:
		return nil, noop, fmt.Errorf("unsupported lock backend %q", cfg.Jobs.LockBackend)
	}
}

func lockName(name string) string {
	name = naming.SanitizeSegment(strings.ToLower(name))
	if name == "" {
		return "job"
	}
	return strings.ReplaceAll(name, " ", "-")
}
