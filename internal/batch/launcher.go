package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"folio/internal/logging"
	"folio/internal/services"
)

// Locker extends single-instance enforcement beyond this process.
// TryLock returns ok=false when another holder owns name.
type Locker interface {
	TryLock(ctx context.Context, name string) (release func() error, ok bool, err error)
}

// Launcher executes jobs, allowing at most one active run per job name.
type Launcher struct {
	runs   RunRepository
	locker Locker
	logger *slog.Logger

	mu     sync.Mutex
	active map[string]struct{}
}

// LauncherOption configures a Launcher.
type LauncherOption func(*Launcher)

// WithLocker adds a cross-process lock around every run.
func WithLocker(locker Locker) LauncherOption {
	return func(l *Launcher) { l.locker = locker }
}

// NewLauncher builds a launcher persisting runs into runs.
func NewLauncher(runs RunRepository, logger *slog.Logger, opts ...LauncherOption) *Launcher {
	l := &Launcher{
		runs:   runs,
		logger: logging.NewComponentLogger(logger, "launcher"),
		active: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Running reports whether name has an active run in this process.
func (l *Launcher) Running(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.active[name]
	return ok
}

func (l *Launcher) claim(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.active[name]; ok {
		return false
	}
	l.active[name] = struct{}{}
	return true
}

func (l *Launcher) release(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.active, name)
}

// Run executes job with params and returns the finished run. A failed run
// is returned together with the step error that stopped it.
func (l *Launcher) Run(ctx context.Context, job *Job, params Parameters) (*JobRun, error) {
	if err := job.Validate(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "launcher", "validate job", "", err)
	}
	if !l.claim(job.Name) {
		return nil, fmt.Errorf("%w: %s", ErrJobRunning, job.Name)
	}
	defer l.release(job.Name)

	if l.locker != nil {
		release, ok, err := l.locker.TryLock(ctx, job.Name)
		if err != nil {
			return nil, fmt.Errorf("acquire lock for job %s: %w", job.Name, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s (held by another process)", ErrJobRunning, job.Name)
		}
		defer func() {
			if err := release(); err != nil {
				logging.WarnWithContext(l.logger, "failed to release job lock", "lock_release_failed",
					logging.String(logging.FieldJob, job.Name),
					logging.Error(err),
				)
			}
		}()
	}

	run := &JobRun{
		JobName:       job.Name,
		CorrelationID: uuid.NewString(),
		Parameters:    params.Clone(),
		Status:        StatusInitial,
		CreatedAt:     time.Now().UTC(),
	}
	if err := l.runs.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run for job %s: %w", job.Name, err)
	}

	ctx = services.WithJob(ctx, job.Name)
	ctx = services.WithRunID(ctx, run.RunID)
	ctx = services.WithRequestID(ctx, run.CorrelationID)
	logger := logging.WithContext(ctx, l.logger)

	if err := run.transition(StatusRunning); err != nil {
		return run, err
	}
	run.StartedAt = time.Now().UTC()
	if err := l.runs.UpdateRun(ctx, run); err != nil {
		l.abort(ctx, logger, run, err)
		return run, fmt.Errorf("start run %d: %w", run.RunID, err)
	}
	logger.Info("job run started", logging.String(logging.FieldEventType, "run_started"))

	exec := StepExecution{RunID: run.RunID, JobName: job.Name, Params: run.Parameters}
	var runErr error
	for iteration := 1; ; iteration++ {
		run.Iterations = iteration
		reports := make([]StepReport, 0, len(job.Steps))
		for _, step := range job.Steps {
			report, err := step.Execute(ctx, exec)
			run.Steps = append(run.Steps, report)
			reports = append(reports, report)
			if err != nil {
				runErr = err
				break
			}
		}
		if runErr != nil || !job.Repeat.again(run.Parameters, iteration, reports) {
			break
		}
	}

	final := StatusCompleted
	if runErr != nil {
		final = StatusFailed
		run.Error = runErr.Error()
	}
	run.EndedAt = time.Now().UTC()
	if err := run.transition(final); err != nil {
		return run, err
	}
	if err := l.runs.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
		logging.ErrorWithContext(logger, "failed to persist run outcome", "run_persist_failed", logging.Error(err))
		if runErr == nil {
			runErr = err
		}
	}

	totals := run.Totals()
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "run_finished"),
		logging.String("status", string(run.Status)),
		logging.Int("read", totals.Read),
		logging.Int("written", totals.Written),
		logging.Int("skipped", totals.Skipped),
		logging.Duration("elapsed", run.EndedAt.Sub(run.StartedAt)),
	}
	if runErr != nil {
		logging.ErrorWithContext(logger, "job run failed", "run_failed", append(attrs, logging.Error(runErr))...)
		return run, fmt.Errorf("job %s run %d: %w", job.Name, run.RunID, runErr)
	}
	logger.Info("job run completed", logging.Args(attrs...)...)
	return run, nil
}

func (l *Launcher) abort(ctx context.Context, logger *slog.Logger, run *JobRun, cause error) {
	run.Error = cause.Error()
	run.EndedAt = time.Now().UTC()
	run.Status = StatusFailed
	if err := l.runs.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
		logging.ErrorWithContext(logger, "failed to persist aborted run", "run_persist_failed", logging.Error(err))
	}
}
