package jobs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"folio/internal/batch"
	"folio/internal/comic"
	"folio/internal/fileutil"
	"folio/internal/lifecycle"
	"folio/internal/logging"
	"folio/internal/naming"
	"folio/internal/services"
)

const stepOrganize = "organize"

// relocation pairs a record with the path its archive should move to.
type relocation struct {
	record *comic.Record
	target string
}

func (c *Catalog) organizeJob(params batch.Parameters) (*batch.Job, error) {
	targetDir := params.Get(ParamTargetDirectory)
	if targetDir == "" {
		targetDir = c.deps.Config.Organize.TargetDir
	}
	rule := params.Get(ParamRenamingRule)
	if rule == "" {
		rule = c.deps.Config.Organize.RenamingRule
	}
	switch {
	case c.deps.Namer == nil:
		return nil, services.Wrap(services.ErrConfiguration, "jobs", "build", "organize needs a renaming rule resolver", nil)
	case strings.TrimSpace(targetDir) == "":
		return nil, services.Wrap(services.ErrConfiguration, "jobs", "build", "organize needs a target directory", nil)
	}
	if err := naming.Validate(rule); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "jobs", "build", "invalid renaming rule", err)
	}
	targetDir = filepath.Clean(targetDir)

	plan := func(_ context.Context, record *comic.Record) (relocation, error) {
		target, err := c.deps.Namer.TargetPath(record, targetDir, rule)
		if err != nil {
			return relocation{}, fmt.Errorf("target for comic %d: %w", record.ID, err)
		}
		target = filepath.Clean(target)
		if filepath.Clean(record.Filename) == target {
			return relocation{}, batch.ErrSkip
		}
		return relocation{record: record, target: target}, nil
	}

	step := configure(c, JobOrganize, &batch.Step[*comic.Record, relocation]{
		Name:      stepOrganize,
		Reader:    c.recordReader(JobOrganize, organizeCriteria()),
		Processor: batch.Pure[*comic.Record, relocation](batch.ProcessorFunc[*comic.Record, relocation](plan)),
		Writer:    batch.Idempotent[relocation](batch.WriterFunc[relocation](c.relocate)),
	})
	return &batch.Job{Name: JobOrganize, Steps: []batch.StepRunner{step}}, nil
}

// relocate moves each archive and then records the new filename. The move is
// idempotent, so a retried chunk or a later run completes a move whose record
// update was rolled back. A target owned by another record is never adopted.
func (c *Catalog) relocate(ctx context.Context, plans []relocation) error {
	for _, plan := range plans {
		record, ok, err := c.current(ctx, plan.record, organizeCriteria())
		if err != nil {
			return err
		}
		if !ok || record.Filename != plan.record.Filename {
			continue
		}
		logger := c.recordLogger(ctx, record)

		owner, err := c.deps.Repo.FindByFilename(ctx, plan.target)
		if err != nil {
			return fmt.Errorf("look up organize target of comic %d: %w", record.ID, err)
		}
		if owner != nil && owner.ID != record.ID {
			if !c.deps.Files.Exists(record.Filename) {
				logging.WarnWithContext(logger, "archive missing; not organized", "file_missing",
					logging.String("filename", record.Filename),
					logging.Int64("target_owner", owner.ID),
					logging.String(logging.FieldErrorHint, "run update-missing to flag the record"),
				)
				continue
			}
			logging.WarnWithContext(logger, "organize target belongs to another comic", "target_conflict",
				logging.String("filename", record.Filename),
				logging.String("target", plan.target),
				logging.Int64("target_owner", owner.ID),
				logging.String(logging.FieldErrorHint, "resolve the duplicate archive or adjust the renaming rule"),
			)
			continue
		}

		moved, err := fileutil.MoveIdempotent(c.deps.Files, record.Filename, plan.target)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			logging.WarnWithContext(logger, "archive missing; not organized", "file_missing",
				logging.String("filename", record.Filename),
				logging.String(logging.FieldErrorHint, "run update-missing to flag the record"),
			)
			continue
		case errors.Is(err, fs.ErrExist):
			logging.WarnWithContext(logger, "organize target already taken", "target_conflict",
				logging.String("filename", record.Filename),
				logging.String("target", plan.target),
				logging.String(logging.FieldErrorHint, "resolve the duplicate archive or adjust the renaming rule"),
			)
			continue
		case err != nil:
			return fmt.Errorf("move comic %d: %w", record.ID, err)
		}

		headers := lifecycle.Headers{lifecycle.HeaderTargetFilename: plan.target}
		applied, err := c.fire(ctx, record, comic.EventConsolidate, headers)
		if err != nil {
			return err
		}
		if !applied && record.Filename != plan.target {
			return fmt.Errorf("comic %d: consolidate not applied after moving to %s", record.ID, plan.target)
		}
		if err := c.deps.Repo.Save(ctx, record); err != nil {
			return fmt.Errorf("save comic %d: %w", record.ID, err)
		}
		logger.Info("archive organized",
			logging.String(logging.FieldEventType, "archive_organized"),
			logging.String("target", plan.target),
			logging.Bool("moved", moved),
		)
	}
	return nil
}
