package embed

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// FileLock is an advisory, cross-process lock wrapping gofrs/flock,
// grounded on the teacher's embed.FileLock. The store uses it (through
// NewFileLockNamed) to guard its file; no embedder takes it.
type FileLock struct {
	flock *flock.Flock
	path  string
}

// NewFileLock creates a lock file at dir/.embed-init.lock.
func NewFileLock(dir string) *FileLock {
	return NewFileLockNamed(dir, ".embed-init.lock")
}

// NewFileLockNamed creates a lock file at dir/name, for callers (such as
// the store) that need an advisory lock scoped to something other than
// embedder initialization.
func NewFileLockNamed(dir, name string) *FileLock {
	path := filepath.Join(dir, name)
	return &FileLock{flock: flock.New(path), path: path}
}

// Lock blocks until the lock is acquired.
func (l *FileLock) Lock() error {
	if err := l.flock.Lock(); err != nil {
		return fmt.Errorf("acquire embed init lock: %w", err)
	}
	return nil
}

// TryLock attempts to acquire the lock without blocking.
func (l *FileLock) TryLock() (bool, error) {
	return l.flock.TryLock()
}

// Unlock releases the lock.
func (l *FileLock) Unlock() error {
	return l.flock.Unlock()
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.path
}
