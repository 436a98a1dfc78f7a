package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeTarget is an in-memory Target double recording every call the
// Watcher makes, guarded by a mutex since fire runs on timer goroutines.
type fakeTarget struct {
	mu       sync.Mutex
	upserts  []string
	deletes  []string
	contents map[string]string
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{contents: map[string]string{}}
}

func (f *fakeTarget) UpsertFile(ctx context.Context, path, content, hash string, size int64, mtime time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, path)
	f.contents[path] = content
	return nil
}

func (f *fakeTarget) DeleteFile(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, path)
	return nil
}

func (f *fakeTarget) upsertCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.upserts {
		if p == path {
			n++
		}
	}
	return n
}

func (f *fakeTarget) deleteCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.deletes {
		if p == path {
			n++
		}
	}
	return n
}

func newWatcherOn(t *testing.T, root string, target Target) *Watcher {
	t.Helper()
	w, err := New(root, target, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func TestWatcherCoalescesRapidWritesIntoOneUpsert(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	target := newFakeTarget()
	newWatcherOn(t, root, target)

	// Two writes in quick succession (well inside the 300ms debounce
	// window) should coalesce into exactly one upsert.
	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("v3"), 0o644))

	require.Eventually(t, func() bool {
		return target.upsertCount("a.go") == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatcherDispatchesCreate(t *testing.T) {
	root := t.TempDir()
	target := newFakeTarget()
	newWatcherOn(t, root, target)

	require.NoError(t, os.WriteFile(filepath.Join(root, "new.go"), []byte("package main"), 0o644))

	require.Eventually(t, func() bool {
		return target.upsertCount("new.go") == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatcherDispatchesDelete(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "gone.go")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	target := newFakeTarget()
	newWatcherOn(t, root, target)

	require.NoError(t, os.Remove(path))

	require.Eventually(t, func() bool {
		return target.deleteCount("gone.go") == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatcherIgnoresGitignoredPaths(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("*.log\n"), 0o644))

	target := newFakeTarget()
	newWatcherOn(t, root, target)

	require.NoError(t, os.WriteFile(filepath.Join(root, "debug.log"), []byte("noise"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.go"), []byte("package main"), 0o644))

	require.Eventually(t, func() bool {
		return target.upsertCount("keep.go") == 1
	}, 2*time.Second, 20*time.Millisecond)
	require.Equal(t, 0, target.upsertCount("debug.log"))
}

func TestWatcherStopCancelsPendingTimersWithoutFiring(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	target := newFakeTarget()
	w, err := New(root, target, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))
	time.Sleep(20 * time.Millisecond) // let fsnotify deliver the event and arm the timer
	require.NoError(t, w.Stop())

	time.Sleep(400 * time.Millisecond) // well past the debounce window
	require.Equal(t, 0, target.upsertCount("a.go"))
}
