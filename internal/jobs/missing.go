package jobs

import (
	"context"
	"fmt"

	"folio/internal/batch"
	"folio/internal/comic"
	"folio/internal/logging"
)

const stepUpdateMissing = "update-missing"

func (c *Catalog) updateMissingJob() *batch.Job {
	step := configure(c, JobUpdateMissing, &batch.Step[*comic.Record, *comic.Record]{
		Name:      stepUpdateMissing,
		Reader:    c.recordReader(JobUpdateMissing, updateMissingCriteria()),
		Processor: batch.PassThrough[*comic.Record](),
		Writer:    batch.Idempotent[*comic.Record](batch.WriterFunc[*comic.Record](c.updateMissing)),
	})
	return &batch.Job{Name: JobUpdateMissing, Steps: []batch.StepRunner{step}}
}

// updateMissing lets the markMissing and markFound guards compare each
// record's flag with the filesystem. Only records that changed are saved.
func (c *Catalog) updateMissing(ctx context.Context, records []*comic.Record) error {
	for _, read := range records {
		record, ok, err := c.current(ctx, read, updateMissingCriteria())
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		event := comic.EventMarkMissing
		if record.Missing {
			event = comic.EventMarkFound
		}
		moved, err := c.fire(ctx, record, event, nil)
		if err != nil {
			return err
		}
		if !moved {
			continue
		}
		c.recordLogger(ctx, record).Info("missing flag updated",
			logging.String(logging.FieldEventType, "missing_updated"),
			logging.String("filename", record.Filename),
			logging.Bool("missing", record.Missing),
		)
		if err := c.deps.Repo.Save(ctx, record); err != nil {
			return fmt.Errorf("save comic %d: %w", record.ID, err)
		}
	}
	return nil
}
