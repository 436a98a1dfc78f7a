// Package watch implements the live filesystem watcher: fsnotify events,
// debounced per-path, driving Synchronizer-equivalent upsert/delete calls
// against a store.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/searchgrep/searchgrep/internal/gitignore"
	"github.com/searchgrep/searchgrep/internal/hashcontent"
)

// Debounce and stability windows, per section 4.8.
const (
	DebounceWindow      = 300 * time.Millisecond
	StabilityThreshold  = 500 * time.Millisecond
	StabilityPollPeriod = 100 * time.Millisecond
)

// Target is the subset of the VectorStore the Watcher drives.
type Target interface {
	UpsertFile(ctx context.Context, path, content, hash string, size int64, mtime time.Time) error
	DeleteFile(ctx context.Context, path string) error
}

// op is the coalesced kind of filesystem event pending for a path.
type op int

const (
	opUpsert op = iota
	opDelete
)

// Watcher subscribes to a directory tree and, after debouncing rapid
// events per path, drives upserts and deletes against a Target.
type Watcher struct {
	root   string
	target Target
	logger *slog.Logger

	fsWatcher *fsnotify.Watcher
	gitignore *gitignore.Matcher

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New constructs a Watcher rooted at root, driving target on debounced
// events. logger may be nil, in which case a discard logger is used.
func New(root string, target Target, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	matcher, err := gitignore.LoadTree(root)
	if err != nil {
		matcher = gitignore.New()
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
	}

	return &Watcher{
		root:      root,
		target:    target,
		logger:    logger,
		fsWatcher: fsw,
		gitignore: matcher,
		timers:    make(map[string]*time.Timer),
		stopCh:    make(chan struct{}),
	}, nil
}

// Start adds every non-ignored directory under root to the fsnotify
// watcher and begins dispatching events until ctx is canceled or Stop is
// called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop closes the underlying fsnotify watcher and cancels every pending
// debounce timer without flushing additional work, per section 4.8. Safe to
// call more than once.
func (w *Watcher) Stop() error {
	err := w.shutdown()
	w.wg.Wait()
	return err
}

// shutdown cancels pending timers and closes the fsnotify watcher, without
// waiting for the event loop goroutine to exit. Called both from Stop
// (external callers) and from the event loop itself on context
// cancellation, where waiting on w.wg would deadlock against its own exit.
func (w *Watcher) shutdown() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()

	close(w.stopCh)
	return w.fsWatcher.Close()
}

func (w *Watcher) addRecursive(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	if err := w.fsWatcher.Add(dir); err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		rel, err := filepath.Rel(w.root, filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		if w.gitignore.Match(filepath.ToSlash(rel), true) {
			continue
		}
		if err := w.addRecursive(filepath.Join(dir, entry.Name())); err != nil {
			w.logger.Warn("watch: failed to add subdirectory", slog.String("dir", dir), slog.String("error", err.Error()))
		}
	}
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			_ = w.shutdown()
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch: fsnotify error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	isDir := false
	if info, statErr := os.Stat(event.Name); statErr == nil {
		isDir = info.IsDir()
	}
	if w.gitignore.Match(rel, isDir) {
		return
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		if isDir {
			_ = w.fsWatcher.Add(event.Name)
			return
		}
		w.debounce(rel, opUpsert)
	case event.Op&fsnotify.Write != 0:
		w.debounce(rel, opUpsert)
	case event.Op&fsnotify.Remove != 0, event.Op&fsnotify.Rename != 0:
		w.debounce(rel, opDelete)
	}
}

// debounce cancels any prior pending timer for path and schedules a new
// one, firing DebounceWindow after the most recent event for that path —
// independent of every other path's timer.
func (w *Watcher) debounce(path string, o op) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	if timer, ok := w.timers[path]; ok {
		timer.Stop()
	}
	w.timers[path] = time.AfterFunc(DebounceWindow, func() {
		w.fire(path, o)
	})
}

// fire applies the debounced event: wait for the file to stop changing
// (for upserts), read it, and call the appropriate Target method.
func (w *Watcher) fire(path string, o op) {
	w.mu.Lock()
	delete(w.timers, path)
	stopped := w.stopped
	w.mu.Unlock()
	if stopped {
		return
	}

	ctx := context.Background()
	full := filepath.Join(w.root, path)

	switch o {
	case opDelete:
		if err := w.target.DeleteFile(ctx, path); err != nil {
			w.logger.Warn("watch: delete failed", slog.String("path", path), slog.String("error", err.Error()))
		}
	case opUpsert:
		waitForStability(full, StabilityThreshold, StabilityPollPeriod)

		data, err := os.ReadFile(full)
		if err != nil {
			// File vanished between the event and the read; treat as a
			// delete rather than erroring out.
			if err := w.target.DeleteFile(ctx, path); err != nil {
				w.logger.Warn("watch: delete-on-missing-read failed", slog.String("path", path), slog.String("error", err.Error()))
			}
			return
		}

		info, statErr := os.Stat(full)
		var mtime time.Time
		var size int64
		if statErr == nil {
			mtime = info.ModTime()
			size = info.Size()
		}

		content := string(data)
		hash := hashcontent.Hash(content)
		if err := w.target.UpsertFile(ctx, path, content, hash, size, mtime); err != nil {
			w.logger.Warn("watch: upsert failed", slog.String("path", path), slog.String("error", err.Error()))
		}
	}
}

// waitForStability polls path's size until it is unchanged for threshold,
// emulating an await-write-finish guard so a large file mid-write isn't
// read half-formed. Best-effort: a stat failure simply stops the wait.
func waitForStability(path string, threshold, pollPeriod time.Duration) {
	var lastSize int64 = -1
	stableSince := time.Now()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.Size() != lastSize {
			lastSize = info.Size()
			stableSince = time.Now()
		}
		if time.Since(stableSince) >= threshold {
			return
		}
		time.Sleep(pollPeriod)
	}
}
