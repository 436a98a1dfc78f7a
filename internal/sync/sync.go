// Package sync implements the Synchronizer: a three-way diff between a
// filesystem snapshot and a store's indexed files, driving concurrent
// upserts and sequential deletes.
package sync

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/searchgrep/searchgrep/internal/hashcontent"
	"github.com/searchgrep/searchgrep/internal/walker"
)

// defaultConcurrency is the default width of the upload fan-out, per
// section 4.7.
const defaultConcurrency = 10

// Target is the subset of the VectorStore the Synchronizer mutates and
// reads from, kept narrow so tests can fake it without a real store.
type Target interface {
	ListFiles() []FileMetadata
	UpsertFile(ctx context.Context, path, content, hash string, size int64, mtime int64) error
	DeleteFile(ctx context.Context, path string) error
}

// FileMetadata is the subset of store.FileMetadata the diff needs.
type FileMetadata struct {
	Path string
	Hash string
}

// Phase names the current stage of a Sync call, per section 4.7.
type Phase string

const (
	PhaseScanning  Phase = "scanning"
	PhaseComparing Phase = "comparing"
	PhaseUploading Phase = "uploading"
	PhaseDeleting  Phase = "deleting"
	PhaseDone      Phase = "done"
)

// Progress is reported to Options.OnProgress at each phase transition and
// after each item within a phase.
type Progress struct {
	Phase     Phase
	Processed int
	Total     int
}

// FileError records a per-file failure captured during upload or delete.
// Sync never aborts the batch on one of these.
type FileError struct {
	Path string
	Err  error
}

// Result summarizes one Sync call.
type Result struct {
	Uploaded   int
	Deleted    int
	Skipped    int
	Errors     []FileError
	DurationMs int64
}

// Options configures a Sync call.
type Options struct {
	DryRun      bool
	Concurrency int
	OnProgress  func(Progress)
	// Clock returns the current time as epoch milliseconds, for computing
	// DurationMs. Defaults to time.Now().UnixMilli.
	Clock func() int64
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = defaultConcurrency
	}
	if o.OnProgress == nil {
		o.OnProgress = func(Progress) {}
	}
	if o.Clock == nil {
		o.Clock = defaultClock
	}
	return o
}

func defaultClock() int64 { return time.Now().UnixMilli() }

type uploadItem struct {
	path    string
	content string
	hash    string
	size    int64
	mtime   int64
}

// Sync drains scan, diffs it against target.ListFiles() by content hash,
// and drives the upload/delete phases described in section 4.7. Local
// files whose content hash matches the store are skipped. Per-file upload
// and delete failures are captured in Result.Errors and never abort the
// batch.
func Sync(ctx context.Context, target Target, scan <-chan walker.Result, opts Options) (Result, error) {
	opts = opts.withDefaults()
	start := opts.Clock()

	opts.OnProgress(Progress{Phase: PhaseScanning})
	local := drainScan(scan)
	opts.OnProgress(Progress{Phase: PhaseScanning, Processed: len(local), Total: len(local)})

	opts.OnProgress(Progress{Phase: PhaseComparing, Total: len(local)})
	uploads, deletes, skipped := diff(target.ListFiles(), local)
	opts.OnProgress(Progress{Phase: PhaseComparing, Processed: len(local), Total: len(local)})

	var result Result
	result.Skipped = skipped

	if opts.DryRun {
		result.Uploaded = len(uploads)
		result.Deleted = len(deletes)
		opts.OnProgress(Progress{Phase: PhaseDone, Processed: len(uploads) + len(deletes), Total: len(uploads) + len(deletes)})
		result.DurationMs = opts.Clock() - start
		return result, nil
	}

	uploaded, uploadErrs := runUploads(ctx, target, uploads, opts)
	result.Uploaded = uploaded
	result.Errors = append(result.Errors, uploadErrs...)

	deleted, deleteErrs := runDeletes(ctx, target, deletes, opts)
	result.Deleted = deleted
	result.Errors = append(result.Errors, deleteErrs...)

	opts.OnProgress(Progress{Phase: PhaseDone, Processed: uploaded + deleted, Total: len(uploads) + len(deletes)})
	result.DurationMs = opts.Clock() - start
	return result, nil
}

func drainScan(scan <-chan walker.Result) []*walker.File {
	var files []*walker.File
	for r := range scan {
		if r.File != nil {
			files = append(files, r.File)
		}
	}
	return files
}

// diff computes the three-way split described in section 4.7: files whose
// local content hash matches the store are skipped, everything else local
// is an upload candidate (hash pre-computed here), and anything indexed
// but absent locally is a delete candidate.
func diff(indexed []FileMetadata, local []*walker.File) (uploads []uploadItem, deletes []string, skipped int) {
	indexedHash := make(map[string]string, len(indexed))
	for _, f := range indexed {
		indexedHash[f.Path] = f.Hash
	}

	localPaths := make(map[string]bool, len(local))
	for _, f := range local {
		localPaths[f.Path] = true
		hash := hashcontent.Hash(f.Content)
		if h, ok := indexedHash[f.Path]; ok && h == hash {
			skipped++
			continue
		}
		uploads = append(uploads, uploadItem{
			path:    f.Path,
			content: f.Content,
			hash:    hash,
			size:    f.Size,
			mtime:   f.LastModified.UnixMilli(),
		})
	}

	for path := range indexedHash {
		if !localPaths[path] {
			deletes = append(deletes, path)
		}
	}
	return uploads, deletes, skipped
}

// runUploads fans uploads out through a semaphore of width
// opts.Concurrency. Per-file failures are captured, never aborting the
// batch.
func runUploads(ctx context.Context, target Target, uploads []uploadItem, opts Options) (int, []FileError) {
	if len(uploads) == 0 {
		return 0, nil
	}
	opts.OnProgress(Progress{Phase: PhaseUploading, Total: len(uploads)})

	sem := semaphore.NewWeighted(int64(opts.Concurrency))
	results := make(chan struct {
		path string
		err  error
	}, len(uploads))

	for _, item := range uploads {
		item := item
		if err := sem.Acquire(ctx, 1); err != nil {
			results <- struct {
				path string
				err  error
			}{item.path, err}
			continue
		}
		go func() {
			defer sem.Release(1)
			err := target.UpsertFile(ctx, item.path, item.content, item.hash, item.size, item.mtime)
			results <- struct {
				path string
				err  error
			}{item.path, err}
		}()
	}

	var uploaded int
	var errs []FileError
	for i := 0; i < len(uploads); i++ {
		r := <-results
		if r.err != nil {
			errs = append(errs, FileError{Path: r.path, Err: r.err})
		} else {
			uploaded++
		}
		opts.OnProgress(Progress{Phase: PhaseUploading, Processed: i + 1, Total: len(uploads)})
	}
	return uploaded, errs
}

// runDeletes processes deletes sequentially, capturing per-file failures.
func runDeletes(ctx context.Context, target Target, deletes []string, opts Options) (int, []FileError) {
	if len(deletes) == 0 {
		return 0, nil
	}
	opts.OnProgress(Progress{Phase: PhaseDeleting, Total: len(deletes)})

	var deleted int
	var errs []FileError
	for i, path := range deletes {
		if err := target.DeleteFile(ctx, path); err != nil {
			errs = append(errs, FileError{Path: path, Err: err})
		} else {
			deleted++
		}
		opts.OnProgress(Progress{Phase: PhaseDeleting, Processed: i + 1, Total: len(deletes)})
	}
	return deleted, errs
}
