package workflow

import (
	"context"
	"log/slog"
	"strings"

	"folio/internal/logging"
	"folio/internal/preflight"
	"folio/internal/services"
)

// runPreflightChecks gates a launch on directory and lock backend readiness.
// Passing checks repeat every poll, so only failures are logged above debug.
func (m *Manager) runPreflightChecks(ctx context.Context, logger *slog.Logger) error {
	if m.checks == nil {
		return nil
	}
	results := m.checks(ctx)
	for _, r := range results {
		if r.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldEventType, "preflight_passed"),
			)
		}
	}

	failed := preflight.Failed(results)
	if len(failed) == 0 {
		return nil
	}
	summary := make([]string, 0, len(failed))
	for _, r := range failed {
		logger.Error("preflight check failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String(logging.FieldErrorHint, "fix the reported issue; the lane retries on the next poll"),
		)
		summary = append(summary, r.Name+": "+r.Detail)
	}
	return services.Wrap(services.ErrConfiguration, "workflow", "preflight", strings.Join(summary, "; "), nil)
}
