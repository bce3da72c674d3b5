package jobs

import (
	"context"
	"fmt"

	"folio/internal/batch"
	"folio/internal/comic"
	"folio/internal/logging"
)

const stepPurge = "purge"

func (c *Catalog) purgeJob(params batch.Parameters) *batch.Job {
	deleteFiles := params.Bool(ParamDeleteRemovedFiles, c.deps.Config.Organize.DeleteRemovedFiles)
	deleteRecords := params.Bool(ParamDeleteRecords, false)

	purge := func(ctx context.Context, records []*comic.Record) error {
		for _, read := range records {
			record, ok, err := c.current(ctx, read, purgeCriteria())
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			purged, err := c.fire(ctx, record, comic.EventPurge, nil)
			if err != nil {
				return err
			}
			if !purged {
				continue
			}
			if deleteFiles {
				if err := c.deps.Files.Delete(record.Filename); err != nil {
					return fmt.Errorf("delete archive of comic %d: %w", record.ID, err)
				}
			}
			if deleteRecords {
				err = c.deps.Repo.Delete(ctx, record)
			} else {
				err = c.deps.Repo.Save(ctx, record)
			}
			if err != nil {
				return fmt.Errorf("purge comic %d: %w", record.ID, err)
			}
			c.recordLogger(ctx, record).Info("comic purged",
				logging.String(logging.FieldEventType, "comic_purged"),
				logging.String("filename", record.Filename),
				logging.Bool("file_deleted", deleteFiles),
				logging.Bool("record_deleted", deleteRecords),
			)
		}
		return nil
	}

	step := configure(c, JobPurge, &batch.Step[*comic.Record, *comic.Record]{
		Name:      stepPurge,
		Reader:    c.recordReader(JobPurge, purgeCriteria()),
		Processor: batch.PassThrough[*comic.Record](),
		Writer:    batch.Idempotent[*comic.Record](batch.WriterFunc[*comic.Record](purge)),
	})
	return &batch.Job{Name: JobPurge, Steps: []batch.StepRunner{step}}
}
