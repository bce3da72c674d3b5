package joblock

import (
	"context"
	"errors"
	"testing"
	"time"

	"folio/internal/batch"
	"folio/internal/config"
	"folio/internal/logging"
	"folio/internal/testsupport"
)

func TestFileLockerExcludesSecondHolder(t *testing.T) {
	locker, err := NewFileLocker(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileLocker failed: %v", err)
	}
	ctx := context.Background()

	release, ok, err := locker.TryLock(ctx, "import")
	if err != nil || !ok {
		t.Fatalf("first TryLock = %v, %v", ok, err)
	}
	if _, ok, err := locker.TryLock(ctx, "import"); err != nil || ok {
		t.Fatalf("second TryLock = %v, %v; want held", ok, err)
	}
	otherRelease, ok, err := locker.TryLock(ctx, "purge")
	if err != nil || !ok {
		t.Fatalf("other job TryLock = %v, %v", ok, err)
	}
	_ = otherRelease()

	if err := release(); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	again, ok, err := locker.TryLock(ctx, "import")
	if err != nil || !ok {
		t.Fatalf("TryLock after release = %v, %v", ok, err)
	}
	_ = again()
}

func TestLockNameIsFilesystemSafe(t *testing.T) {
	cases := map[string]string{
		"import":           "import",
		"Load Contents":    "load-contents",
		"../../etc/passwd": "-..-etc-passwd",
		"":                 "job",
	}
	for in, want := range cases {
		if got := lockName(in); got != want {
			t.Fatalf("lockName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewSelectsBackend(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)

	locker, closeFn, err := New(ctx, cfg, logging.NewNop())
	if err != nil || locker != nil || closeFn == nil {
		t.Fatalf("none backend = %v, %v", locker, err)
	}

	cfg.Jobs.LockBackend = config.LockBackendFile
	locker, closeFn, err = New(ctx, cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("file backend failed: %v", err)
	}
	defer closeFn()
	if _, ok := locker.(*FileLocker); !ok {
		t.Fatalf("expected *FileLocker, got %T", locker)
	}

	cfg.Jobs.LockBackend = config.LockBackendRedis
	cfg.Jobs.RedisURL = "not-a-url"
	if _, _, err := New(ctx, cfg, logging.NewNop()); err == nil {
		t.Fatal("expected invalid redis url to fail")
	}
}

func TestRedisLockerRejectsBadSettings(t *testing.T) {
	if _, err := NewRedisLocker(context.Background(), "redis://localhost:6379/0", 0, logging.NewNop()); err == nil {
		t.Fatal("expected zero ttl to fail")
	}
}

func TestFileLockerGuardsLauncherAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	first, _ := NewFileLocker(dir)
	second, _ := NewFileLocker(dir)

	release, ok, err := first.TryLock(context.Background(), "organize")
	if err != nil || !ok {
		t.Fatalf("TryLock = %v, %v", ok, err)
	}
	defer release()

	launcher := batch.NewLauncher(batch.NewMemoryRunRepository(), logging.NewNop(), batch.WithLocker(second))
	step := &batch.Step[int, int]{
		Name:      "noop",
		Reader:    batch.NewSliceReader(1),
		Processor: batch.PassThrough[int](),
		Writer:    batch.WriterFunc[int](func(context.Context, []int) error { return nil }),
		ChunkSize: 1,
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = launcher.Run(ctx, &batch.Job{Name: "organize", Steps: []batch.StepRunner{step}}, nil)
	if !errors.Is(err, batch.ErrJobRunning) {
		t.Fatalf("expected ErrJobRunning, got %v", err)
	}
}
