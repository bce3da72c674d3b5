package joblock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// FileLocker holds one advisory flock per job name under a directory. The
// kernel drops the lock if the process dies.
type FileLocker struct {
	dir string
}

// NewFileLocker returns a locker writing lock files into dir.
func NewFileLocker(dir string) (*FileLocker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	return &FileLocker{dir: dir}, nil
}

// Path returns the lock file used for name.
func (l *FileLocker) Path(name string) string {
	return filepath.Join(l.dir, lockName(name)+".lock")
}

// TryLock acquires the lock for name without blocking.
func (l *FileLocker) TryLock(_ context.Context, name string) (func() error, bool, error) {
	lock := flock.New(l.Path(name))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("lock %s: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}
	return lock.Unlock, true, nil
}
