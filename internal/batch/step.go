package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"folio/internal/logging"
	"folio/internal/services"
)

// ProcessErrorPolicy decides what a processor error does to its chunk.
type ProcessErrorPolicy int

const (
	// AbortChunk fails the chunk, and with it the step, on any processor error.
	AbortChunk ProcessErrorPolicy = iota
	// SkipItem logs the error and treats the item as skipped.
	SkipItem
)

// StepExecution identifies the job run a step executes under.
type StepExecution struct {
	RunID   int64
	JobName string
	Params  Parameters
}

// StepRunner is a step of any item types, as sequenced by a Job.
type StepRunner interface {
	StepName() string
	Execute(ctx context.Context, exec StepExecution) (StepReport, error)
}

// Step reads items in chunks of ChunkSize, processes each item, and writes
// the survivors of every chunk in one transaction. Chunks run sequentially;
// a failed chunk rolls back and stops the step, leaving earlier chunks
// committed.
type Step[T, U any] struct {
	Name      string
	Reader    Reader[T]
	Processor Processor[T, U]
	Writer    Writer[U]
	ChunkSize int

	// Tx scopes each chunk write. Defaults to NoTransaction.
	Tx Transactor
	// Listeners are notified around every chunk.
	Listeners []ChunkListener
	// ProcessErrors selects the processor failure policy.
	ProcessErrors ProcessErrorPolicy
	// WriteAttempts bounds attempts for idempotent writers; others get one.
	WriteAttempts int
	// RetryInitial is the first backoff interval between write attempts.
	RetryInitial time.Duration
	// Concurrency > 1 processes a chunk in parallel when the processor is
	// side-effect free. Output order always matches read order.
	Concurrency int
	// Limiter throttles item reads when set.
	Limiter *rate.Limiter
	Logger  *slog.Logger
}

// StepName implements StepRunner.
func (s *Step[T, U]) StepName() string {
	return s.Name
}

func (s *Step[T, U]) validate() error {
	switch {
	case s.Name == "":
		return errors.New("step name is required")
	case s.Reader == nil:
		return fmt.Errorf("step %s: reader is required", s.Name)
	case s.Processor == nil:
		return fmt.Errorf("step %s: processor is required", s.Name)
	case s.Writer == nil:
		return fmt.Errorf("step %s: writer is required", s.Name)
	case s.ChunkSize <= 0:
		return fmt.Errorf("step %s: chunk size must be positive, got %d", s.Name, s.ChunkSize)
	}
	return nil
}

// Execute runs the step until the reader is exhausted, a chunk fails, or ctx
// is cancelled. Cancellation is observed between chunks only.
func (s *Step[T, U]) Execute(ctx context.Context, exec StepExecution) (StepReport, error) {
	report := StepReport{Name: s.Name, Status: StatusRunning, StartedAt: time.Now().UTC()}
	if err := s.validate(); err != nil {
		return s.finish(report, services.Wrap(services.ErrConfiguration, "batch", "validate step", "", err))
	}
	if sized, ok := s.Reader.(interface{ SetPageSize(int) }); ok {
		sized.SetPageSize(s.ChunkSize)
	}

	ctx = services.WithStep(ctx, s.Name)
	logger := logging.WithContext(ctx, logging.NewComponentLogger(s.Logger, "batch"))
	listeners := append([]ChunkListener{LoggingListener{Logger: logger}}, s.Listeners...)

	cc := ChunkContext{RunID: exec.RunID, JobName: exec.JobName, StepName: s.Name, Params: exec.Params}
	for {
		if err := ctx.Err(); err != nil {
			return s.finish(report, err)
		}
		chunkCtx := context.WithoutCancel(ctx)
		started := time.Now()

		items, exhausted, err := s.readChunk(chunkCtx)
		report.Read += len(items)
		if err != nil {
			cc.Chunk++
			cc.Buffered = len(items)
			chunkErr := &ChunkError{Step: s.Name, Chunk: cc.Chunk, Phase: phaseRead, Item: -1, Err: err}
			notifyAfter(chunkCtx, logger, listeners, cc, ChunkResult{Read: len(items), Elapsed: time.Since(started), Err: chunkErr})
			report.Rollbacks++
			return s.finish(report, chunkErr)
		}
		if len(items) == 0 {
			break
		}

		cc.Chunk++
		cc.Buffered = len(items)
		report.Chunks++
		notifyBefore(chunkCtx, logger, listeners, cc)

		result := ChunkResult{Read: len(items)}
		outputs, skipped, err := s.processChunk(chunkCtx, logger, cc.Chunk, items)
		result.Skipped = skipped
		report.Skipped += skipped
		if err == nil {
			report.Processed += len(items)
			var retries int
			retries, err = s.writeChunk(chunkCtx, logger, cc.Chunk, outputs)
			result.Retries = retries
			report.Retries += retries
			report.Rollbacks += retries
		}
		result.Elapsed = time.Since(started)
		if err != nil {
			result.Err = err
			report.Rollbacks++
			notifyAfter(chunkCtx, logger, listeners, cc, result)
			return s.finish(report, err)
		}

		result.Written = len(outputs)
		report.Written += len(outputs)
		if len(outputs) > 0 {
			report.Commits++
		}
		cc.Committed++
		notifyAfter(chunkCtx, logger, listeners, cc, result)

		if exhausted {
			break
		}
	}
	return s.finish(report, nil)
}

func (s *Step[T, U]) finish(report StepReport, err error) (StepReport, error) {
	report.EndedAt = time.Now().UTC()
	if err != nil {
		report.Status = StatusFailed
		report.Error = err.Error()
		return report, err
	}
	report.Status = StatusCompleted
	return report, nil
}

// readChunk pulls up to ChunkSize items. exhausted is true once the reader
// has returned io.EOF.
func (s *Step[T, U]) readChunk(ctx context.Context) (items []T, exhausted bool, err error) {
	items = make([]T, 0, s.ChunkSize)
	for len(items) < s.ChunkSize {
		if s.Limiter != nil {
			if err := s.Limiter.Wait(ctx); err != nil {
				return items, false, err
			}
		}
		item, err := s.Reader.Read(ctx)
		if errors.Is(err, io.EOF) {
			return items, true, nil
		}
		if err != nil {
			return items, false, err
		}
		items = append(items, item)
	}
	return items, false, nil
}

type processed[U any] struct {
	value U
	err   error
}

func (s *Step[T, U]) processChunk(ctx context.Context, logger *slog.Logger, chunk int, items []T) ([]U, int, error) {
	results := make([]processed[U], len(items))
	if s.Concurrency > 1 && isSideEffectFree(s.Processor) {
		var g errgroup.Group
		g.SetLimit(s.Concurrency)
		for idx, item := range items {
			g.Go(func() error {
				value, err := s.Processor.Process(ctx, item)
				results[idx] = processed[U]{value: value, err: err}
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for idx, item := range items {
			value, err := s.Processor.Process(ctx, item)
			results[idx] = processed[U]{value: value, err: err}
			if err != nil && !errors.Is(err, ErrSkip) && s.ProcessErrors == AbortChunk {
				break
			}
		}
	}

	outputs := make([]U, 0, len(items))
	skipped := 0
	for idx, res := range results {
		switch {
		case res.err == nil:
			outputs = append(outputs, res.value)
		case errors.Is(res.err, ErrSkip):
			skipped++
		case s.ProcessErrors == SkipItem:
			skipped++
			logging.WarnWithContext(logger, "item skipped after processing error", "item_failed",
				logging.Int("chunk", chunk),
				logging.Int("item", idx),
				logging.Error(res.err),
			)
		default:
			return nil, skipped, &ChunkError{Step: s.Name, Chunk: chunk, Phase: phaseProcess, Item: idx, Err: res.err}
		}
	}
	return outputs, skipped, nil
}

// writeChunk hands outputs to the writer inside the chunk transaction. It
// returns how many failed attempts were retried.
func (s *Step[T, U]) writeChunk(ctx context.Context, logger *slog.Logger, chunk int, outputs []U) (int, error) {
	if len(outputs) == 0 {
		return 0, nil
	}
	tx := s.Tx
	if tx == nil {
		tx = NoTransaction
	}
	attempt := func() error {
		return tx.InChunk(ctx, func(txCtx context.Context) error {
			return s.Writer.Write(txCtx, outputs)
		})
	}

	attempts := s.WriteAttempts
	if !isIdempotent(s.Writer) || attempts < 1 {
		attempts = 1
	}
	if attempts == 1 {
		if err := attempt(); err != nil {
			return 0, &ChunkError{Step: s.Name, Chunk: chunk, Phase: phaseWrite, Item: -1, Err: err}
		}
		return 0, nil
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = s.RetryInitial
	if expBackoff.InitialInterval <= 0 {
		expBackoff.InitialInterval = 100 * time.Millisecond
	}
	expBackoff.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(attempts-1)), ctx)

	retries := 0
	operation := func() error {
		err := attempt()
		if err != nil && !services.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		retries++
		logging.WarnWithContext(logger, "chunk write failed; retrying", "chunk_retry",
			logging.Int("chunk", chunk),
			logging.Int("attempt", retries),
			logging.Duration("backoff", wait),
			logging.Error(err),
		)
	}
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return retries, &ChunkError{Step: s.Name, Chunk: chunk, Phase: phaseWrite, Item: -1, Err: err}
	}
	return retries, nil
}
