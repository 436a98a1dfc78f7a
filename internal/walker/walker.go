// Package walker scans a source tree and yields the files eligible for
// indexing, honoring ignore rules and size/count bounds.
package walker

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/searchgrep/searchgrep/internal/errs"
	"github.com/searchgrep/searchgrep/internal/gitignore"
)

// File is one file yielded by a scan.
type File struct {
	Path         string // repo-relative, POSIX-normalized
	Content      string
	Size         int64
	LastModified time.Time
}

// Diagnostic reports a file that was skipped rather than indexed.
type Diagnostic struct {
	Path string
	Err  *errs.Error
}

// Result is one item from a Scan stream: either a File or a Diagnostic.
type Result struct {
	File       *File
	Diagnostic *Diagnostic
}

var defaultExcludeDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"dist":         true,
	"build":        true,
	"target":       true,
	".venv":        true,
	"vendor":       true,
	"__pycache__":  true,
}

var lockFileNames = map[string]bool{
	"package-lock.json": true,
	"yarn.lock":         true,
	"pnpm-lock.yaml":     true,
	"go.sum":            true,
	"Cargo.lock":        true,
	"poetry.lock":       true,
}

// Options bounds a Scan.
type Options struct {
	MaxFileSize  int64
	MaxFileCount int
}

// Walker streams eligible files from a root directory.
type Walker struct {
	gitignoreCache *lru.Cache[string, *gitignore.Matcher]
}

// New constructs a Walker with an ignore-matcher cache keyed by scan root,
// mirroring the teacher scanner's gitignoreCache sizing. Only the root's
// .gitignore and .searchgrepignore are read; ignore files in
// subdirectories are not.
func New() *Walker {
	cache, _ := lru.New[string, *gitignore.Matcher](1000)
	return &Walker{gitignoreCache: cache}
}

// Scan streams files under root honoring ignore rules and the size/count
// bounds in opts. The channel is closed when the walk completes or ctx is
// canceled.
func (w *Walker) Scan(ctx context.Context, root string, opts Options) <-chan Result {
	out := make(chan Result, 64)

	go func() {
		defer close(out)

		count := 0
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				return nil //nolint:nilerr // best-effort: skip unreadable entries
			}

			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)
			if rel == "." {
				return nil
			}

			name := d.Name()
			if d.IsDir() {
				if w.shouldExcludeDir(name) || w.isIgnored(root, rel, true) {
					return filepath.SkipDir
				}
				return nil
			}

			if w.shouldExcludeFile(name) || w.isIgnored(root, rel, false) {
				return nil
			}

			if opts.MaxFileCount > 0 && count >= opts.MaxFileCount {
				send(ctx, out, Result{Diagnostic: &Diagnostic{
					Path: rel,
					Err:  errs.New(errs.IgnoredFile, "max file count reached"),
				}})
				return nil
			}

			info, infoErr := d.Info()
			if infoErr != nil {
				return nil
			}

			if opts.MaxFileSize > 0 && info.Size() > opts.MaxFileSize {
				send(ctx, out, Result{Diagnostic: &Diagnostic{
					Path: rel,
					Err:  errs.New(errs.IgnoredFile, "file exceeds maxFileSize").WithDetail("size", info.Size()),
				}})
				return nil
			}

			data, readErr := os.ReadFile(path)
			if readErr != nil {
				send(ctx, out, Result{Diagnostic: &Diagnostic{
					Path: rel,
					Err:  errs.Wrap(errs.IgnoredFile, "read failed", readErr),
				}})
				return nil
			}

			if isBinary(data) {
				send(ctx, out, Result{Diagnostic: &Diagnostic{
					Path: rel,
					Err:  errs.New(errs.IgnoredFile, "binary file"),
				}})
				return nil
			}

			count++
			send(ctx, out, Result{File: &File{
				Path:         rel,
				Content:      string(data),
				Size:         info.Size(),
				LastModified: info.ModTime(),
			}})
			return nil
		})
	}()

	return out
}

func send(ctx context.Context, out chan<- Result, r Result) {
	select {
	case out <- r:
	case <-ctx.Done():
	}
}

func (w *Walker) shouldExcludeDir(name string) bool {
	if name != "." && strings.HasPrefix(name, ".") {
		return true
	}
	return defaultExcludeDirs[name]
}

func (w *Walker) shouldExcludeFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	return lockFileNames[name]
}

// isIgnored checks path against the ignore matcher for root, loading and
// caching one per root directory.
func (w *Walker) isIgnored(root, rel string, isDir bool) bool {
	matcher, ok := w.gitignoreCache.Get(root)
	if !ok {
		m, err := gitignore.LoadTree(root)
		if err != nil {
			m = gitignore.New()
		}
		w.gitignoreCache.Add(root, m)
		matcher = m
	}
	return matcher.Match(rel, isDir)
}

// isBinary sniffs the first 512 bytes of content for a NUL byte, the same
// heuristic the teacher scanner uses.
func isBinary(data []byte) bool {
	n := len(data)
	if n > 512 {
		n = 512
	}
	return bytes.IndexByte(data[:n], 0) != -1
}
