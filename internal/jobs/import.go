package jobs

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"folio/internal/batch"
	"folio/internal/comic"
	"folio/internal/logging"
)

const (
	stepImportDescriptors = "import-descriptors"
	stepReady             = "ready"
)

// importJob turns queued descriptors into CREATED records, then announces
// them as ready.
func (c *Catalog) importJob() *batch.Job {
	take := func(ctx context.Context, limit int) ([]comic.Descriptor, error) {
		return c.deps.Repo.TakeDescriptors(ctx, limit)
	}
	descriptors := configure(c, JobImport, &batch.Step[comic.Descriptor, *comic.Record]{
		Name:      stepImportDescriptors,
		Reader:    batch.NewConsumingReader[comic.Descriptor](take, c.deps.Config.ChunkSizeFor(JobImport)),
		Processor: batch.ProcessorFunc[comic.Descriptor, *comic.Record](c.newRecord),
		Writer:    batch.WriterFunc[*comic.Record](c.saveNewRecords),
	})
	ready := configure(c, JobImport, &batch.Step[*comic.Record, *comic.Record]{
		Name:      stepReady,
		Reader:    c.recordReader(JobImport, createdCriteria()),
		Processor: batch.PassThrough[*comic.Record](),
		Writer:    batch.Idempotent[*comic.Record](batch.WriterFunc[*comic.Record](c.markReady)),
	})
	return &batch.Job{Name: JobImport, Steps: []batch.StepRunner{descriptors, ready}}
}

// newRecord builds a CREATED record for a descriptor whose file the library
// does not know yet.
func (c *Catalog) newRecord(ctx context.Context, d comic.Descriptor) (*comic.Record, error) {
	filename := strings.TrimSpace(d.Filename)
	if filename == "" {
		return nil, batch.ErrSkip
	}
	filename = filepath.Clean(filename)
	existing, err := c.deps.Repo.FindByFilename(ctx, filename)
	if err != nil {
		return nil, fmt.Errorf("look up %s: %w", filename, err)
	}
	if existing != nil {
		logging.WithContext(ctx, c.logger).Debug("descriptor already imported",
			logging.String("filename", filename),
			logging.Int64("descriptor_id", d.ID),
		)
		return nil, batch.ErrSkip
	}
	record := comic.NewRecord(filename)
	if !d.EnqueuedAt.IsZero() {
		record.CreatedAt = d.EnqueuedAt
	}
	return record, nil
}

func (c *Catalog) saveNewRecords(ctx context.Context, records []*comic.Record) error {
	seen := make(map[string]struct{}, len(records))
	for _, record := range records {
		if _, dup := seen[record.Filename]; dup {
			continue
		}
		seen[record.Filename] = struct{}{}
		if err := c.deps.Repo.Save(ctx, record); err != nil {
			return fmt.Errorf("save %s: %w", record.Filename, err)
		}
	}
	return nil
}

func (c *Catalog) markReady(ctx context.Context, records []*comic.Record) error {
	for _, read := range records {
		record, ok, err := c.current(ctx, read, createdCriteria())
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		moved, err := c.fire(ctx, record, comic.EventReady, nil)
		if err != nil {
			return err
		}
		if !moved {
			continue
		}
		if err := c.deps.Repo.Save(ctx, record); err != nil {
			return fmt.Errorf("save comic %d: %w", record.ID, err)
		}
	}
	return nil
}
