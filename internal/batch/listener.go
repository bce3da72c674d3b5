package batch

import (
	"context"
	"fmt"
	"log/slog"

	"folio/internal/logging"
)

// ChunkListener is notified after every chunk, successful or not.
type ChunkListener interface {
	AfterChunk(ctx context.Context, cc ChunkContext, result ChunkResult)
}

// BeforeChunkListener is optionally implemented to observe chunk starts.
type BeforeChunkListener interface {
	BeforeChunk(ctx context.Context, cc ChunkContext)
}

// ChunkListenerFunc adapts a function to ChunkListener.
type ChunkListenerFunc func(ctx context.Context, cc ChunkContext, result ChunkResult)

func (f ChunkListenerFunc) AfterChunk(ctx context.Context, cc ChunkContext, result ChunkResult) {
	f(ctx, cc, result)
}

// LoggingListener writes one line per chunk.
type LoggingListener struct {
	Logger *slog.Logger
}

func (l LoggingListener) AfterChunk(ctx context.Context, cc ChunkContext, result ChunkResult) {
	logger := logging.WithContext(ctx, l.Logger)
	if result.Err != nil {
		logging.WarnWithContext(logger, "chunk rolled back", "chunk_failed",
			logging.Int("chunk", cc.Chunk),
			logging.Int("read", result.Read),
			logging.Error(result.Err),
			logging.String(logging.FieldErrorHint, "earlier chunks stay committed; rerun the job once the cause is fixed"),
		)
		return
	}
	logger.Debug("chunk committed",
		logging.String(logging.FieldEventType, "chunk_committed"),
		logging.Int("chunk", cc.Chunk),
		logging.Int("read", result.Read),
		logging.Int("skipped", result.Skipped),
		logging.Int("written", result.Written),
		logging.Duration("elapsed", result.Elapsed),
	)
}

func notifyBefore(ctx context.Context, logger *slog.Logger, listeners []ChunkListener, cc ChunkContext) {
	for _, l := range listeners {
		if before, ok := l.(BeforeChunkListener); ok {
			guardListener(logger, func() { before.BeforeChunk(ctx, cc) })
		}
	}
}

func notifyAfter(ctx context.Context, logger *slog.Logger, listeners []ChunkListener, cc ChunkContext, result ChunkResult) {
	for _, l := range listeners {
		guardListener(logger, func() { l.AfterChunk(ctx, cc, result) })
	}
}

func guardListener(logger *slog.Logger, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.WarnWithContext(logger, "chunk listener panicked", "listener_failed",
				logging.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	fn()
}
