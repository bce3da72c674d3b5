package workflow

import (
	"fmt"
	"log/slog"

	"folio/internal/logging"
)

func (m *Manager) laneLogger(lane *laneState) *slog.Logger {
	if m.logger == nil {
		return logging.NewNop()
	}
	return m.logger.With(
		logging.String(logging.FieldComponent, fmt.Sprintf("workflow-%s-runner", lane.lane.Job)),
		logging.String("lane", lane.lane.Job),
	)
}
