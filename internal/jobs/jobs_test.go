package jobs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"folio/internal/batch"
	"folio/internal/comic"
	"folio/internal/config"
	"folio/internal/fileutil"
	"folio/internal/jobs"
	"folio/internal/lifecycle"
	"folio/internal/logging"
	"folio/internal/naming"
	"folio/internal/services"
	"folio/internal/store"
	"folio/internal/testsupport"
)

type harness struct {
	cfg      *config.Config
	store    *store.Store
	catalog  *jobs.Catalog
	launcher *batch.Launcher
}

func newHarness(t *testing.T, listeners []batch.ChunkListener, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	return newWrappedHarness(t, listeners, nil, opts...)
}

// newWrappedHarness lets wrap interpose on the repository the jobs use.
func newWrappedHarness(t *testing.T, listeners []batch.ChunkListener, wrap func(*store.Store) jobs.Repository, opts ...testsupport.ConfigOption) *harness {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	var repo jobs.Repository = st
	if wrap != nil {
		repo = wrap(st)
	}
	files := fileutil.Files{}
	namer := naming.New()
	machine := lifecycle.NewMachine(lifecycle.DefaultTable(), lifecycle.Env{Files: files, Namer: namer}, logging.NewNop())
	machine.AddListener(st.TransitionLog())

	catalog, err := jobs.NewCatalog(jobs.Deps{
		Config:    cfg,
		Repo:      repo,
		Tx:        st,
		Machine:   machine,
		Files:     files,
		Namer:     namer,
		Blocked:   st,
		Listeners: listeners,
		Logger:    logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}
	return &harness{cfg: cfg, store: st, catalog: catalog, launcher: batch.NewLauncher(st, logging.NewNop())}
}

func (h *harness) run(t *testing.T, name string, params batch.Parameters) *batch.JobRun {
	t.Helper()

	job, err := h.catalog.Build(name, params)
	if err != nil {
		t.Fatalf("Build(%s) failed: %v", name, err)
	}
	run, err := h.launcher.Run(context.Background(), job, params)
	if err != nil {
		t.Fatalf("Run(%s) failed: %v", name, err)
	}
	if run.Status != batch.StatusCompleted {
		t.Fatalf("expected %s to complete, got %s (%s)", name, run.Status, run.Error)
	}
	return run
}

func (h *harness) find(t *testing.T, id int64) *comic.Record {
	t.Helper()

	record, err := h.store.Find(context.Background(), id)
	if err != nil {
		t.Fatalf("Find(%d) failed: %v", id, err)
	}
	return record
}

func (h *harness) count(t *testing.T, criteria comic.Criteria) int {
	t.Helper()

	n, err := h.store.Count(context.Background(), criteria)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	return n
}

func TestImportWritesChunksThenMarksReady(t *testing.T) {
	var (
		mu      sync.Mutex
		writes  []int
		created []int
		h       *harness
	)
	listener := batch.ChunkListenerFunc(func(ctx context.Context, cc batch.ChunkContext, result batch.ChunkResult) {
		if cc.StepName != "import-descriptors" {
			return
		}
		n, _ := h.store.Count(ctx, comic.InStates(comic.StateCreated))
		mu.Lock()
		defer mu.Unlock()
		writes = append(writes, result.Written)
		created = append(created, n)
	})
	h = newHarness(t, []batch.ChunkListener{listener}, testsupport.WithChunkSize(2))

	ctx := context.Background()
	if _, err := h.store.Enqueue(ctx, "/library/a.cbz", "/library/b.cbz", "/library/c.cbr"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	run := h.run(t, jobs.JobImport, nil)

	if !slices.Equal(writes, []int{2, 1}) {
		t.Fatalf("expected writer calls [2 1], got %v", writes)
	}
	if !slices.Equal(created, []int{2, 3}) {
		t.Fatalf("expected CREATED counts [2 3] after each chunk, got %v", created)
	}
	if len(run.Steps) != 2 || run.Steps[0].Written != 3 || run.Steps[1].Written != 3 {
		t.Fatalf("unexpected step reports: %+v", run.Steps)
	}
	if got := h.count(t, comic.InStates(comic.StateUnprocessed)); got != 3 {
		t.Fatalf("expected 3 UNPROCESSED records, got %d", got)
	}
	if got := h.count(t, comic.InStates(comic.StateCreated)); got != 0 {
		t.Fatalf("expected no CREATED records left, got %d", got)
	}
	if pending, _ := h.store.PendingDescriptors(ctx); pending != 0 {
		t.Fatalf("expected intake queue to be drained, got %d", pending)
	}

	record, err := h.store.FindByFilename(ctx, "/library/c.cbr")
	if err != nil || record == nil {
		t.Fatalf("FindByFilename = %v, %v", record, err)
	}
	if record.ArchiveType != comic.ArchiveCBR {
		t.Fatalf("expected cbr archive type, got %q", record.ArchiveType)
	}
	history, err := h.store.History(ctx, record.ID)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 1 || history[0].Event != comic.EventReady || history[0].RunID != run.RunID {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestImportSkipsKnownFilenames(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	testsupport.NewComic(t, h.store, "/library/known.cbz", comic.StateStable)

	if _, err := h.store.Enqueue(ctx, "/library/known.cbz", "/library/new.cbz", "/library/new.cbz"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	run := h.run(t, jobs.JobImport, nil)

	if run.Steps[0].Skipped != 1 {
		t.Fatalf("expected the known filename to be skipped, got %+v", run.Steps[0])
	}
	if got := h.count(t, comic.All()); got != 2 {
		t.Fatalf("expected 2 records, got %d", got)
	}
	if got := h.count(t, comic.InStates(comic.StateStable)); got != 1 {
		t.Fatalf("expected the known record to keep its state, got %d STABLE", got)
	}
}

func TestProcessingJobsPromoteToStable(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	blockedPath := filepath.Join(h.cfg.Paths.LibraryDir, "blocked.cbz")
	cleanPath := filepath.Join(h.cfg.Paths.LibraryDir, "clean.cbz")
	testsupport.WriteContent(t, blockedPath, []byte("blocked pages"))
	testsupport.WriteFile(t, cleanPath, 64)
	blocked := testsupport.NewComic(t, h.store, blockedPath, comic.StateUnprocessed)
	clean := testsupport.NewComic(t, h.store, cleanPath, comic.StateUnprocessed)
	gone := testsupport.NewComic(t, h.store, filepath.Join(h.cfg.Paths.LibraryDir, "gone.cbz"), comic.StateUnprocessed)

	_, hash, err := fileutil.HashFile(blockedPath)
	if err != nil {
		t.Fatalf("HashFile failed: %v", err)
	}
	if err := h.store.BlockHash(ctx, hash, 2, "ads"); err != nil {
		t.Fatalf("BlockHash failed: %v", err)
	}

	run := h.run(t, jobs.JobLoadContents, nil)
	if run.Steps[0].Read != 3 || run.Steps[0].Skipped != 1 || run.Steps[0].Written != 2 {
		t.Fatalf("unexpected load-contents report: %+v", run.Steps[0])
	}
	loaded := h.find(t, clean.ID)
	if !loaded.ContentsLoaded || loaded.FileDetails == nil || loaded.FileDetails.Size != 64 {
		t.Fatalf("expected contents to be loaded, got %+v", loaded)
	}
	if loaded.State != comic.StateUnprocessed {
		t.Fatalf("expected UNPROCESSED until blocked pages are marked, got %s", loaded.State)
	}
	if h.find(t, gone.ID).ContentsLoaded {
		t.Fatal("expected missing archive to stay unloaded")
	}

	h.run(t, jobs.JobMarkBlockedPages, nil)

	got := h.find(t, blocked.ID)
	if got.State != comic.StateStable || !got.BlockedPagesMarked || got.BlockedPages != 2 {
		t.Fatalf("expected STABLE with 2 blocked pages, got %+v", got)
	}
	if got := h.find(t, clean.ID); got.State != comic.StateStable || got.BlockedPages != 0 {
		t.Fatalf("expected clean archive STABLE with no blocked pages, got %+v", got)
	}
}

func TestUpdateMissingFlagsAndRestores(t *testing.T) {
	h := newHarness(t, nil)
	path := filepath.Join(h.cfg.Paths.LibraryDir, "wandering.cbz")
	record := testsupport.NewComic(t, h.store, path, comic.StateStable)
	created := testsupport.NewComic(t, h.store, filepath.Join(h.cfg.Paths.LibraryDir, "new.cbz"), comic.StateCreated)

	h.run(t, jobs.JobUpdateMissing, nil)
	if !h.find(t, record.ID).Missing {
		t.Fatal("expected record to be flagged missing")
	}
	if h.find(t, created.ID).Missing {
		t.Fatal("expected CREATED record to be left alone")
	}

	testsupport.WriteFile(t, path, 8)
	h.run(t, jobs.JobUpdateMissing, nil)
	restored := h.find(t, record.ID)
	if restored.Missing || restored.State != comic.StateStable {
		t.Fatalf("expected record found again in STABLE, got %+v", restored)
	}
}

func TestOrganizeMovesArchivesOnce(t *testing.T) {
	h := newHarness(t, nil)
	source := filepath.Join(h.cfg.Paths.LibraryDir, "incoming", "saga_01.CBZ")
	testsupport.WriteFile(t, source, 32)

	record := comic.NewRecord(source)
	record.State = comic.StateStable
	record.Series = "Saga"
	record.Issue = "1"
	if err := h.store.Save(context.Background(), record); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	target := t.TempDir()
	params := batch.Parameters{jobs.ParamTargetDirectory: target, jobs.ParamRenamingRule: "$SERIES/$SERIES #$ISSUE"}
	h.run(t, jobs.JobOrganize, params)

	want := filepath.Join(target, "Saga", "Saga #001.cbz")
	got := h.find(t, record.ID)
	if got.Filename != want || got.State != comic.StateStable {
		t.Fatalf("expected %s in STABLE, got %s in %s", want, got.Filename, got.State)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected archive at target: %v", err)
	}
	if _, err := os.Stat(source); !os.IsNotExist(err) {
		t.Fatalf("expected source to be gone, got %v", err)
	}

	again := h.run(t, jobs.JobOrganize, params)
	if again.Steps[0].Skipped != 1 || again.Steps[0].Written != 0 {
		t.Fatalf("expected organized archive to be skipped, got %+v", again.Steps[0])
	}
}

func TestOrganizeLeavesConflictsAlone(t *testing.T) {
	h := newHarness(t, nil)
	source := filepath.Join(h.cfg.Paths.LibraryDir, "dup.cbz")
	testsupport.WriteFile(t, source, 16)
	record := comic.NewRecord(source)
	record.State = comic.StateChanged
	record.Series = "Saga"
	if err := h.store.Save(context.Background(), record); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	target := t.TempDir()
	taken := filepath.Join(target, "Saga.cbz")
	testsupport.WriteFile(t, taken, 4)

	h.run(t, jobs.JobOrganize, batch.Parameters{jobs.ParamTargetDirectory: target, jobs.ParamRenamingRule: "$SERIES"})

	if got := h.find(t, record.ID); got.Filename != source {
		t.Fatalf("expected filename unchanged on conflict, got %s", got.Filename)
	}
	if _, err := os.Stat(source); err != nil {
		t.Fatalf("expected source to stay: %v", err)
	}
}

func TestOrganizeSkipsMissingArchiveWhenTargetBelongsToAnotherComic(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	target := t.TempDir()

	owned := filepath.Join(target, "Saga.cbz")
	testsupport.WriteFile(t, owned, 8)
	owner := comic.NewRecord(owned)
	owner.State = comic.StateStable
	owner.Series = "Saga"
	if err := h.store.Save(ctx, owner); err != nil {
		t.Fatalf("Save owner failed: %v", err)
	}

	vanished := comic.NewRecord(filepath.Join(h.cfg.Paths.LibraryDir, "vanished.cbz"))
	vanished.State = comic.StateStable
	vanished.Series = "Saga"
	if err := h.store.Save(ctx, vanished); err != nil {
		t.Fatalf("Save vanished failed: %v", err)
	}

	later := filepath.Join(h.cfg.Paths.LibraryDir, "later.cbz")
	testsupport.WriteFile(t, later, 8)
	next := comic.NewRecord(later)
	next.State = comic.StateStable
	next.Series = "Paper Girls"
	if err := h.store.Save(ctx, next); err != nil {
		t.Fatalf("Save next failed: %v", err)
	}

	params := batch.Parameters{jobs.ParamTargetDirectory: target, jobs.ParamRenamingRule: "$SERIES"}
	h.run(t, jobs.JobOrganize, params)

	if got := h.find(t, vanished.ID); got.Filename != vanished.Filename {
		t.Fatalf("expected vanished record to keep %s, got %s", vanished.Filename, got.Filename)
	}
	if got := h.find(t, owner.ID); got.Filename != owned {
		t.Fatalf("expected owner to keep %s, got %s", owned, got.Filename)
	}
	if got := h.find(t, next.ID); got.Filename != filepath.Join(target, "Paper Girls.cbz") {
		t.Fatalf("expected later record to be organized, got %s", got.Filename)
	}

	// A second pass must complete again rather than fail on the same record.
	h.run(t, jobs.JobOrganize, params)
}

// interleavingRepo fires one operator event right after the first
// non-empty batch read, before the step's writer runs.
type interleavingRepo struct {
	*store.Store
	once  sync.Once
	event func(ctx context.Context, records []*comic.Record)
}

func (r *interleavingRepo) FindBatch(ctx context.Context, criteria comic.Criteria, afterID int64, limit int) ([]*comic.Record, error) {
	records, err := r.Store.FindBatch(ctx, criteria, afterID, limit)
	if err == nil && len(records) > 0 {
		r.once.Do(func() { r.event(ctx, records) })
	}
	return records, err
}

func TestWritersKeepTransitionsCommittedAfterRead(t *testing.T) {
	tests := []struct {
		name  string
		job   string
		state comic.State
		file  bool
	}{
		{name: "update-missing", job: jobs.JobUpdateMissing, state: comic.StateStable},
		{name: "load-contents", job: jobs.JobLoadContents, state: comic.StateUnprocessed, file: true},
		{name: "organize", job: jobs.JobOrganize, state: comic.StateStable, file: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h *harness
			var fireErr error
			wrap := func(st *store.Store) jobs.Repository {
				return &interleavingRepo{Store: st, event: func(ctx context.Context, records []*comic.Record) {
					_, fireErr = h.catalog.FireEvent(ctx, records[0].ID, comic.EventDelete, nil)
				}}
			}
			h = newWrappedHarness(t, nil, wrap)

			path := filepath.Join(h.cfg.Paths.LibraryDir, "contested.cbz")
			if tt.file {
				testsupport.WriteFile(t, path, 16)
			}
			record := comic.NewRecord(path)
			record.State = tt.state
			record.Series = "Saga"
			if err := h.store.Save(context.Background(), record); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			h.run(t, tt.job, batch.Parameters{jobs.ParamTargetDirectory: t.TempDir(), jobs.ParamRenamingRule: "$SERIES"})
			if fireErr != nil {
				t.Fatalf("FireEvent during run failed: %v", fireErr)
			}

			got := h.find(t, record.ID)
			if got.State != comic.StateDeleted {
				t.Fatalf("expected committed DELETED to survive %s, got %s", tt.job, got.State)
			}
			if tt.job == jobs.JobLoadContents && got.ContentsLoaded {
				t.Fatal("expected contents of a deleted record to stay unloaded")
			}
			if tt.job == jobs.JobOrganize && got.Filename != path {
				t.Fatalf("expected deleted record to stay at %s, got %s", path, got.Filename)
			}
			history, err := h.store.History(context.Background(), record.ID)
			if err != nil {
				t.Fatalf("History failed: %v", err)
			}
			if len(history) == 0 || history[0].Event != comic.EventDelete {
				t.Fatalf("expected the delete first in the audit log, got %+v", history)
			}
			for _, entry := range history[1:] {
				if entry.Prior != comic.StateDeleted || entry.Target != comic.StateDeleted {
					t.Fatalf("expected later transitions to stay in DELETED, got %+v", entry)
				}
			}
		})
	}
}

func TestPurgeRemovesDeletedRecords(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	keepPath := filepath.Join(h.cfg.Paths.LibraryDir, "keep.cbz")
	dropPath := filepath.Join(h.cfg.Paths.LibraryDir, "drop.cbz")
	testsupport.WriteFile(t, keepPath, 4)
	testsupport.WriteFile(t, dropPath, 4)
	keep := testsupport.NewComic(t, h.store, keepPath, comic.StateDeleted)
	live := testsupport.NewComic(t, h.store, filepath.Join(h.cfg.Paths.LibraryDir, "live.cbz"), comic.StateStable)

	h.run(t, jobs.JobPurge, nil)
	if got := h.find(t, keep.ID); got.State != comic.StateRemoved {
		t.Fatalf("expected REMOVED, got %s", got.State)
	}
	if _, err := os.Stat(keepPath); err != nil {
		t.Fatalf("expected file kept without deleteRemovedFiles: %v", err)
	}
	if got := h.find(t, live.ID); got.State != comic.StateStable {
		t.Fatalf("expected STABLE record untouched, got %s", got.State)
	}

	drop := testsupport.NewComic(t, h.store, dropPath, comic.StateDeleted)
	h.run(t, jobs.JobPurge, batch.Parameters{jobs.ParamDeleteRemovedFiles: "true", jobs.ParamDeleteRecords: "true"})
	if _, err := h.store.Find(ctx, drop.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected purged row to be deleted, got %v", err)
	}
	if _, err := os.Stat(dropPath); !os.IsNotExist(err) {
		t.Fatalf("expected archive deleted, got %v", err)
	}
	if history, _ := h.store.History(ctx, drop.ID); len(history) != 1 || history[0].Target != comic.StateRemoved {
		t.Fatalf("expected purge to stay in the audit log, got %+v", history)
	}
}

func TestBuildRejectsBadRequests(t *testing.T) {
	h := newHarness(t, nil)

	if _, err := h.catalog.Build("reindex", nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unknown job, got %v", err)
	}
	_, err := h.catalog.Build(jobs.JobOrganize, batch.Parameters{jobs.ParamRenamingRule: "$NOPE"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for bad rule, got %v", err)
	}
}

func TestBuildHonoursMaxIterations(t *testing.T) {
	h := newHarness(t, nil)
	job, err := h.catalog.Build(jobs.JobUpdateMissing, batch.Parameters{jobs.ParamMaxIterations: "4"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if job.Repeat == nil || job.Repeat.MaxIterations != 4 {
		t.Fatalf("expected repeat with 4 iterations, got %+v", job.Repeat)
	}
	job, _ = h.catalog.Build(jobs.JobUpdateMissing, nil)
	if job.Repeat != nil {
		t.Fatalf("expected single pass by default, got %+v", job.Repeat)
	}
}

func TestHasWork(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	for _, name := range []string{jobs.JobImport, jobs.JobLoadContents, jobs.JobMarkBlockedPages, jobs.JobPurge} {
		if busy, err := h.catalog.HasWork(ctx, name); err != nil || busy {
			t.Fatalf("HasWork(%s) on empty library = %v, %v", name, busy, err)
		}
	}
	if _, err := h.store.Enqueue(ctx, "/library/x.cbz"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if busy, _ := h.catalog.HasWork(ctx, jobs.JobImport); !busy {
		t.Fatal("expected import to see queued descriptors")
	}
	testsupport.NewComic(t, h.store, "/library/y.cbz", comic.StateDeleted)
	if busy, _ := h.catalog.HasWork(ctx, jobs.JobPurge); !busy {
		t.Fatal("expected purge to see a DELETED record")
	}
	if _, err := h.catalog.HasWork(ctx, "nope"); err == nil {
		t.Fatal("expected error for unknown job")
	}
}

func TestFireEventPersistsTransition(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	record := testsupport.NewComic(t, h.store, "/library/z.cbz", comic.StateStable)

	change, err := h.catalog.FireEvent(ctx, record.ID, comic.EventDelete, nil)
	if err != nil {
		t.Fatalf("FireEvent failed: %v", err)
	}
	if change.Prior != comic.StateStable || change.Target != comic.StateDeleted {
		t.Fatalf("unexpected change: %+v", change)
	}
	if got := h.find(t, record.ID); got.State != comic.StateDeleted {
		t.Fatalf("expected DELETED to be saved, got %s", got.State)
	}

	_, err = h.catalog.FireEvent(ctx, record.ID, comic.EventReady, nil)
	if !lifecycle.IsIllegalTransition(err) {
		t.Fatalf("expected illegal transition, got %v", err)
	}
	if _, err := h.catalog.FireEvent(ctx, 999, comic.EventDelete, nil); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNamesAreKnown(t *testing.T) {
	for _, name := range jobs.Names() {
		if !jobs.Known(name) {
			t.Fatalf("expected %s to be known", name)
		}
	}
	if jobs.Known("reindex") {
		t.Fatal("expected reindex to be unknown")
	}
}
