package sync

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/searchgrep/searchgrep/internal/hashcontent"
	"github.com/searchgrep/searchgrep/internal/walker"
)

// fakeTarget is an in-memory Target double, letting tests assert on the
// exact upload/delete/skip counts without a real store.
type fakeTarget struct {
	mu        sync.Mutex
	indexed   map[string]string // path -> hash
	upserted  []string
	deleted   []string
	failPaths map[string]bool
}

func newFakeTarget(indexed map[string]string) *fakeTarget {
	return &fakeTarget{indexed: indexed, failPaths: map[string]bool{}}
}

func (f *fakeTarget) ListFiles() []FileMetadata {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FileMetadata, 0, len(f.indexed))
	for path, hash := range f.indexed {
		out = append(out, FileMetadata{Path: path, Hash: hash})
	}
	return out
}

func (f *fakeTarget) UpsertFile(ctx context.Context, path, content, hash string, size int64, mtime int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPaths[path] {
		return errFailed
	}
	f.upserted = append(f.upserted, path)
	f.indexed[path] = hash
	return nil
}

func (f *fakeTarget) DeleteFile(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPaths[path] {
		return errFailed
	}
	f.deleted = append(f.deleted, path)
	delete(f.indexed, path)
	return nil
}

var errFailed = &syncTestError{"synthetic failure"}

type syncTestError struct{ msg string }

func (e *syncTestError) Error() string { return e.msg }

func scanOf(files ...*walker.File) <-chan walker.Result {
	ch := make(chan walker.Result, len(files))
	for _, f := range files {
		ch <- walker.Result{File: f}
	}
	close(ch)
	return ch
}

func TestSyncDiffScenario(t *testing.T) {
	// Local = {x: H1, y: H2}; store = {x: H1, z: H3}.
	target := newFakeTarget(map[string]string{"x": "H1", "z": "H3"})
	scan := scanOf(
		&walker.File{Path: "x", Content: "unchanged"},
		&walker.File{Path: "y", Content: "new file"},
	)

	// Fake hash function isn't pluggable, so use the real hasher: ensure
	// "x"'s stored hash equals the real hash of its content.
	target.indexed["x"] = realHash("unchanged")

	result, err := Sync(context.Background(), target, scan, Options{})
	require.NoError(t, err)

	require.Equal(t, 1, result.Uploaded, "y should upload")
	require.Equal(t, 1, result.Deleted, "z should delete")
	require.Equal(t, 1, result.Skipped, "x should skip")
	require.Empty(t, result.Errors)
}

func TestSyncUnchangedTreeIsNoOp(t *testing.T) {
	target := newFakeTarget(map[string]string{"a": realHash("content a")})
	scan := scanOf(&walker.File{Path: "a", Content: "content a"})

	result, err := Sync(context.Background(), target, scan, Options{})
	require.NoError(t, err)
	require.Equal(t, 0, result.Uploaded)
	require.Equal(t, 0, result.Deleted)
	require.Equal(t, 1, result.Skipped)
}

func TestSyncDryRunSkipsMutations(t *testing.T) {
	target := newFakeTarget(map[string]string{"z": "H3"})
	scan := scanOf(&walker.File{Path: "y", Content: "new"})

	result, err := Sync(context.Background(), target, scan, Options{DryRun: true})
	require.NoError(t, err)
	require.Equal(t, 1, result.Uploaded)
	require.Equal(t, 1, result.Deleted)
	require.Empty(t, target.upserted)
	require.Empty(t, target.deleted)
}

func TestSyncCapturesPerFileErrorsWithoutAborting(t *testing.T) {
	target := newFakeTarget(map[string]string{})
	target.failPaths["bad.go"] = true
	scan := scanOf(
		&walker.File{Path: "bad.go", Content: "x"},
		&walker.File{Path: "good.go", Content: "y"},
	)

	result, err := Sync(context.Background(), target, scan, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, result.Uploaded)
	require.Len(t, result.Errors, 1)
	require.Equal(t, "bad.go", result.Errors[0].Path)
}

func TestSyncDeleteReaddResultsInOneUpsert(t *testing.T) {
	target := newFakeTarget(map[string]string{})

	scan1 := scanOf(&walker.File{Path: "a.go", Content: "same bytes"})
	r1, err := Sync(context.Background(), target, scan1, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, r1.Uploaded)

	scan2 := scanOf() // file removed from filesystem
	r2, err := Sync(context.Background(), target, scan2, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, r2.Deleted)

	scan3 := scanOf(&walker.File{Path: "a.go", Content: "same bytes"})
	r3, err := Sync(context.Background(), target, scan3, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, r3.Uploaded, "re-add after delete is exactly one more upsert")
}

func realHash(content string) string {
	return hashcontent.Hash(content)
}
