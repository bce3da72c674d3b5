package jobs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"folio/internal/batch"
	"folio/internal/comic"
	"folio/internal/fileutil"
	"folio/internal/logging"
	"folio/internal/services"
)

const (
	stepLoadContents     = "load-contents"
	stepMarkBlockedPages = "mark-blocked-pages"
)

// FileContents loads archive details straight from disk.
type FileContents struct{}

// LoadContents returns the size and SHA-256 of filename.
func (FileContents) LoadContents(_ context.Context, filename string) (comic.FileDetails, error) {
	size, hash, err := fileutil.HashFile(filename)
	if err != nil {
		return comic.FileDetails{}, err
	}
	return comic.FileDetails{Size: size, Hash: hash}, nil
}

func (c *Catalog) loadContentsJob() *batch.Job {
	step := configure(c, JobLoadContents, &batch.Step[*comic.Record, *comic.Record]{
		Name:      stepLoadContents,
		Reader:    c.recordReader(JobLoadContents, loadContentsCriteria()),
		Processor: batch.Pure[*comic.Record, *comic.Record](batch.ProcessorFunc[*comic.Record, *comic.Record](c.loadContents)),
		Writer:    batch.Idempotent[*comic.Record](c.processedWriter(loadContentsCriteria(), applyContents)),
	})
	return &batch.Job{Name: JobLoadContents, Steps: []batch.StepRunner{step}}
}

// loadContents reads file details into a copy of record. Files that vanished
// since discovery are skipped; update-missing flags them later.
func (c *Catalog) loadContents(ctx context.Context, record *comic.Record) (*comic.Record, error) {
	details, err := c.deps.Contents.LoadContents(ctx, record.Filename)
	if errors.Is(err, fs.ErrNotExist) {
		logging.WarnWithContext(c.recordLogger(ctx, record), "archive missing while loading contents", "file_missing",
			logging.String("filename", record.Filename),
			logging.String(logging.FieldErrorHint, "run update-missing to flag the record"),
		)
		return nil, batch.ErrSkip
	}
	if err != nil {
		return nil, fmt.Errorf("load contents of %s: %w", record.Filename, err)
	}
	updated := record.Clone()
	updated.FileDetails = &details
	updated.ContentsLoaded = true
	return updated, nil
}

func (c *Catalog) markBlockedPagesJob() (*batch.Job, error) {
	if c.deps.Blocked == nil {
		return nil, services.Wrap(services.ErrConfiguration, "jobs", "build", "mark-blocked-pages needs a blocked page lookup", nil)
	}
	step := configure(c, JobMarkBlockedPages, &batch.Step[*comic.Record, *comic.Record]{
		Name:      stepMarkBlockedPages,
		Reader:    c.recordReader(JobMarkBlockedPages, markBlockedCriteria()),
		Processor: batch.ProcessorFunc[*comic.Record, *comic.Record](c.markBlockedPages),
		Writer:    batch.Idempotent[*comic.Record](c.processedWriter(markBlockedCriteria(), applyBlockedPages)),
	})
	return &batch.Job{Name: JobMarkBlockedPages, Steps: []batch.StepRunner{step}}, nil
}

func (c *Catalog) markBlockedPages(ctx context.Context, record *comic.Record) (*comic.Record, error) {
	if record.FileDetails == nil || record.FileDetails.Hash == "" {
		logging.WarnWithContext(c.recordLogger(ctx, record), "contents loaded without a hash", "hash_missing",
			logging.String("filename", record.Filename),
			logging.String(logging.FieldErrorHint, "fire rescan to reload the archive"),
		)
		return nil, batch.ErrSkip
	}
	pages, err := c.deps.Blocked.BlockedPages(ctx, record.FileDetails.Hash)
	if err != nil {
		return nil, fmt.Errorf("blocked pages for comic %d: %w", record.ID, err)
	}
	updated := record.Clone()
	updated.BlockedPages = pages
	updated.BlockedPagesMarked = true
	return updated, nil
}

// applyContents copies loaded file details onto the stored record.
func applyContents(record, processed *comic.Record) bool {
	record.FileDetails = processed.FileDetails
	record.ContentsLoaded = true
	return true
}

// applyBlockedPages copies the blocked page count onto the stored record. A
// count computed for a different hash is stale and dropped.
func applyBlockedPages(record, processed *comic.Record) bool {
	if record.FileDetails == nil || processed.FileDetails == nil || record.FileDetails.Hash != processed.FileDetails.Hash {
		return false
	}
	record.BlockedPages = processed.BlockedPages
	record.BlockedPagesMarked = true
	return true
}

// processedWriter reloads each record, applies the processor's result with
// apply and offers contentsLoaded. The contentsProcessed guard decides
// whether the record becomes STABLE, so either processing job may complete
// a record.
func (c *Catalog) processedWriter(criteria comic.Criteria, apply func(record, processed *comic.Record) bool) batch.Writer[*comic.Record] {
	return batch.WriterFunc[*comic.Record](func(ctx context.Context, records []*comic.Record) error {
		for _, processed := range records {
			record, ok, err := c.current(ctx, processed, criteria)
			if err != nil {
				return err
			}
			if !ok || !apply(record, processed) {
				continue
			}
			if _, err := c.fire(ctx, record, comic.EventContentsLoaded, nil); err != nil {
				return err
			}
			if err := c.deps.Repo.Save(ctx, record); err != nil {
				return fmt.Errorf("save comic %d: %w", record.ID, err)
			}
		}
		return nil
	})
}
