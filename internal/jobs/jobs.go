package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/time/rate"

	"folio/internal/batch"
	"folio/internal/comic"
	"folio/internal/config"
	"folio/internal/lifecycle"
	"folio/internal/logging"
	"folio/internal/services"
)

// Job names accepted by Build.
const (
	JobImport           = "import"
	JobLoadContents     = "load-contents"
	JobMarkBlockedPages = "mark-blocked-pages"
	JobUpdateMissing    = "update-missing"
	JobOrganize         = "organize"
	JobPurge            = "purge"
)

// Run parameters understood by the jobs.
const (
	ParamTargetDirectory    = "targetDirectory"
	ParamRenamingRule       = "renamingRule"
	ParamDeleteRemovedFiles = "deleteRemovedFiles"
	ParamDeleteRecords      = "deleteRecords"
	ParamBatchName          = "batchName"
	ParamMaxIterations      = "maxIterations"
)

// Repository is the record store the jobs read from and write to.
type Repository interface {
	Find(ctx context.Context, id int64) (*comic.Record, error)
	FindByFilename(ctx context.Context, filename string) (*comic.Record, error)
	FindBatch(ctx context.Context, criteria comic.Criteria, afterID int64, limit int) ([]*comic.Record, error)
	Count(ctx context.Context, criteria comic.Criteria) (int, error)
	Save(ctx context.Context, record *comic.Record) error
	Delete(ctx context.Context, record *comic.Record) error
	TakeDescriptors(ctx context.Context, limit int) ([]comic.Descriptor, error)
	PendingDescriptors(ctx context.Context) (int, error)
}

// ContentLoader reads the physical characteristics of an archive.
type ContentLoader interface {
	LoadContents(ctx context.Context, filename string) (comic.FileDetails, error)
}

// BlockedLookup reports how many pages of an archive with the given hash are
// blocked.
type BlockedLookup interface {
	BlockedPages(ctx context.Context, hash string) (int, error)
}

// Deps are the collaborators shared by every job.
type Deps struct {
	Config   *config.Config
	Repo     Repository
	Tx       batch.Transactor
	Machine  *lifecycle.Machine
	Files    lifecycle.FileAdaptor
	Namer    lifecycle.Namer
	Contents ContentLoader
	Blocked  BlockedLookup
	// Listeners are attached to every step.
	Listeners []batch.ChunkListener
	Logger    *slog.Logger
}

// Catalog builds the library jobs from shared dependencies.
type Catalog struct {
	deps   Deps
	logger *slog.Logger
}

// NewCatalog validates deps and returns a catalog.
func NewCatalog(deps Deps) (*Catalog, error) {
	switch {
	case deps.Config == nil:
		return nil, fmt.Errorf("jobs: config is required")
	case deps.Repo == nil:
		return nil, fmt.Errorf("jobs: repository is required")
	case deps.Machine == nil:
		return nil, fmt.Errorf("jobs: lifecycle machine is required")
	case deps.Files == nil:
		return nil, fmt.Errorf("jobs: file adaptor is required")
	}
	if deps.Tx == nil {
		deps.Tx = batch.NoTransaction
	}
	if deps.Contents == nil {
		deps.Contents = FileContents{}
	}
	return &Catalog{deps: deps, logger: logging.NewComponentLogger(deps.Logger, "jobs")}, nil
}

// Names lists every job the catalog can build.
func Names() []string {
	return []string{JobImport, JobLoadContents, JobMarkBlockedPages, JobUpdateMissing, JobOrganize, JobPurge}
}

// Build assembles the named job for one run.
func (c *Catalog) Build(name string, params batch.Parameters) (*batch.Job, error) {
	var (
		job *batch.Job
		err error
	)
	switch name {
	case JobImport:
		job = c.importJob()
	case JobLoadContents:
		job = c.loadContentsJob()
	case JobMarkBlockedPages:
		job, err = c.markBlockedPagesJob()
	case JobUpdateMissing:
		job = c.updateMissingJob()
	case JobOrganize:
		job, err = c.organizeJob(params)
	case JobPurge:
		job = c.purgeJob(params)
	default:
		return nil, services.Wrap(services.ErrValidation, "jobs", "build",
			fmt.Sprintf("unknown job %q (known: %v)", name, Names()), nil)
	}
	if err != nil {
		return nil, err
	}
	if n := params.Int(ParamMaxIterations, 0); n > 0 {
		job.Repeat = &batch.Repeat{MaxIterations: n}
	}
	return job, nil
}

// HasWork reports whether the named job would read anything right now.
// Periodic jobs whose readers always find records report true.
func (c *Catalog) HasWork(ctx context.Context, name string) (bool, error) {
	switch name {
	case JobImport:
		pending, err := c.deps.Repo.PendingDescriptors(ctx)
		if err != nil || pending > 0 {
			return pending > 0, err
		}
		return c.any(ctx, createdCriteria())
	case JobLoadContents:
		return c.any(ctx, loadContentsCriteria())
	case JobMarkBlockedPages:
		return c.any(ctx, markBlockedCriteria())
	case JobPurge:
		return c.any(ctx, purgeCriteria())
	case JobUpdateMissing, JobOrganize:
		return true, nil
	default:
		return false, services.Wrap(services.ErrValidation, "jobs", "probe", fmt.Sprintf("unknown job %q", name), nil)
	}
}

func (c *Catalog) any(ctx context.Context, criteria comic.Criteria) (bool, error) {
	n, err := c.deps.Repo.Count(ctx, criteria)
	return n > 0, err
}

// Known reports whether name is a job the catalog builds.
func Known(name string) bool {
	return slices.Contains(Names(), name)
}

// configure applies the shared engine settings to step.
func configure[T, U any](c *Catalog, job string, step *batch.Step[T, U]) *batch.Step[T, U] {
	cfg := c.deps.Config
	step.ChunkSize = cfg.ChunkSizeFor(job)
	step.Tx = c.deps.Tx
	step.Listeners = c.deps.Listeners
	step.WriteAttempts = cfg.Batch.WriteAttempts
	step.RetryInitial = cfg.RetryInitialInterval()
	step.Concurrency = cfg.Batch.ProcessConcurrency
	if ips := cfg.Batch.ItemsPerSecond; ips > 0 {
		step.Limiter = rate.NewLimiter(rate.Limit(ips), max(1, int(ips)))
	}
	step.Logger = c.deps.Logger
	return step
}

// recordReader pages through records matching criteria by id.
func (c *Catalog) recordReader(job string, criteria comic.Criteria) batch.Reader[*comic.Record] {
	fetch := func(ctx context.Context, after int64, limit int) ([]*comic.Record, error) {
		return c.deps.Repo.FindBatch(ctx, criteria, after, limit)
	}
	key := func(r *comic.Record) int64 { return r.ID }
	return batch.NewQueryReader[*comic.Record](fetch, key, c.deps.Config.ChunkSizeFor(job))
}

// fire applies event to record and reports whether the record moved. Guard
// rejections and events without a rule are normal no-ops for jobs.
func (c *Catalog) fire(ctx context.Context, record *comic.Record, event comic.Event, headers lifecycle.Headers) (bool, error) {
	_, err := c.deps.Machine.Fire(ctx, record, event, headers)
	switch {
	case err == nil:
		return true, nil
	case lifecycle.IsGuardRejected(err), lifecycle.IsIllegalTransition(err):
		c.recordLogger(ctx, record).Debug("event not applied",
			logging.String("event", string(event)),
			logging.String("reason", err.Error()),
		)
		return false, nil
	default:
		return false, err
	}
}

// current reloads read inside the chunk transaction so writers apply their
// change to the latest committed row, not to the copy the reader fetched.
// ok is false when the record was deleted or no longer matches criteria,
// which happens when another lane or an operator event moved it first.
func (c *Catalog) current(ctx context.Context, read *comic.Record, criteria comic.Criteria) (*comic.Record, bool, error) {
	record, err := c.deps.Repo.Find(ctx, read.ID)
	if errors.Is(err, services.ErrNotFound) {
		c.recordLogger(ctx, read).Debug("record deleted since read")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reload comic %d: %w", read.ID, err)
	}
	if !criteria.Matches(record) {
		c.recordLogger(ctx, record).Debug("record changed since read",
			logging.String("state", string(record.State)),
		)
		return nil, false, nil
	}
	return record, true, nil
}

func (c *Catalog) recordLogger(ctx context.Context, record *comic.Record) *slog.Logger {
	if record != nil && record.ID != 0 {
		ctx = services.WithComicID(ctx, record.ID)
	}
	return logging.WithContext(ctx, c.logger)
}

// FireEvent applies event to the stored record with id and saves it in one
// transaction. Unlike the jobs, every transition failure is returned.
func (c *Catalog) FireEvent(ctx context.Context, id int64, event comic.Event, headers lifecycle.Headers) (lifecycle.Change, error) {
	var change lifecycle.Change
	err := c.deps.Tx.InChunk(ctx, func(ctx context.Context) error {
		record, err := c.deps.Repo.Find(ctx, id)
		if err != nil {
			return err
		}
		change, err = c.deps.Machine.Fire(ctx, record, event, headers)
		if err != nil {
			return err
		}
		return c.deps.Repo.Save(ctx, record)
	})
	return change, err
}
