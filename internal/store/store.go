package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/searchgrep/searchgrep/internal/chunk"
	"github.com/searchgrep/searchgrep/internal/embed"
	"github.com/searchgrep/searchgrep/internal/errs"
)

// filePrefixBytes bounds the whole-file embedding prefix described in the
// data model: the first 2 KB of content, prefixed with "File: {path}\n\n".
const filePrefixBytes = 2048

// Clock returns the current time as epoch milliseconds. Injectable so tests
// can control metadata.updated without sleeping.
type Clock func() int64

func defaultClock() int64 { return time.Now().UnixMilli() }

// Store is a single-writer, single-file document store. One Store owns one
// {dataDir}/{name}.json file, guarded by an advisory flock so a second
// process opening the same file fails fast instead of corrupting it.
type Store struct {
	mu       sync.RWMutex
	path     string
	name     string
	lock     *embed.FileLock
	embedder embed.Embedder
	clock    Clock

	documents map[string]*Document // keyed by path
	metadata  Metadata
	dimension int
}

// Open loads (or creates) the store file at {dataDir}/{name}.json, taking
// an advisory lock on it for the lifetime of the process. A corrupt or
// unreadable file is treated as an empty store per the StoreCorrupt policy:
// the in-memory state starts empty and the bad file is left untouched until
// the next successful mutation overwrites it.
func Open(dataDir, name string, embedder embed.Embedder, clock Clock) (*Store, error) {
	if clock == nil {
		clock = defaultClock
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, errs.Wrap(errs.StoreIOFailure, "create data dir", err)
	}

	lock := embed.NewFileLockNamed(dataDir, "."+name+".store.lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, errs.Wrap(errs.StoreIOFailure, "acquire store lock", err)
	}
	if !locked {
		return nil, errs.New(errs.StoreIOFailure, "store is already open in another process")
	}

	s := &Store{
		path:      filepath.Join(dataDir, name+".json"),
		name:      name,
		lock:      lock,
		embedder:  embedder,
		clock:     clock,
		documents: make(map[string]*Document),
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases the advisory lock on the store file.
func (s *Store) Close() error {
	return s.lock.Unlock()
}

// load reads the persisted file, if present. A missing file is not an
// error: the store starts empty and is created on first persist. An
// unreadable or invalid file is also not fatal: it is logged-equivalent via
// StoreCorrupt semantics and the store starts empty.
func (s *Store) load() error {
	freshMetadata := func() { s.metadata = Metadata{Name: s.name, Created: s.clock(), Updated: s.clock()} }

	data, err := os.ReadFile(s.path)
	if err != nil {
		freshMetadata()
		return nil
	}

	var pf persistedFile
	if err := json.Unmarshal(data, &pf); err != nil {
		freshMetadata()
		return nil
	}
	if pf.SchemaVersion != schemaVersion {
		// Refuse to interpret an unrecognized major version's documents as
		// this version's shape; per the StoreCorrupt policy, treat the
		// store as empty rather than failing the whole Open call. The bad
		// file is left on disk untouched until the next successful
		// mutation persists over it.
		freshMetadata()
		return nil
	}

	s.metadata = pf.Metadata
	for i := range pf.Documents {
		d := pf.Documents[i]
		s.documents[d.Path] = &d
		for _, c := range d.Chunks {
			if len(c.Embedding) > 0 {
				s.dimension = len(c.Embedding)
			}
		}
	}
	return nil
}

// persist writes the current in-memory state to a temp file and renames it
// over the store file, so a crash mid-write never leaves a half-written
// store on disk.
func (s *Store) persist() error {
	docs := make([]Document, 0, len(s.documents))
	paths := make([]string, 0, len(s.documents))
	for path := range s.documents {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		docs = append(docs, *s.documents[path])
	}

	pf := persistedFile{
		SchemaVersion: schemaVersion,
		Documents:     docs,
		Metadata:      s.metadata,
	}

	data, err := json.Marshal(pf)
	if err != nil {
		return errs.Wrap(errs.StoreIOFailure, "marshal store", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errs.Wrap(errs.StoreIOFailure, "write temp store file", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errs.Wrap(errs.StoreIOFailure, "rename temp store file", err)
	}
	return nil
}

// UpsertFile creates or replaces the Document for path. If an existing
// Document with this path already has the given hash, the call is a no-op:
// no chunking, no embedding call, no persist, and metadata.updated is left
// unchanged.
func (s *Store) UpsertFile(ctx context.Context, path, content, hash string, size int64, mtime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.documents[path]; ok && existing.Hash == hash {
		return nil
	}

	chunks := chunk.Chunk(content, path, chunk.Options{})
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = "File: " + path + "\n\n" + c.Content
	}

	var embeddings [][]float32
	if len(texts) > 0 {
		var err error
		embeddings, err = s.embedder.Embed(ctx, texts, embed.KindDoc)
		if err != nil {
			return errs.Wrap(errs.EmbedderFailure, "embed chunks for "+path, err)
		}
		if len(embeddings) != len(texts) {
			return errs.New(errs.EmbedderFailure, "embedder returned wrong number of vectors").
				WithDetail("path", path).WithDetail("want", len(texts)).WithDetail("got", len(embeddings))
		}
		if err := s.checkDimension(embeddings); err != nil {
			return err
		}
	}

	fileEmbedding, err := s.embedWholeFile(ctx, path, content)
	if err != nil {
		return err
	}

	docChunks := make([]Chunk, len(chunks))
	for i, c := range chunks {
		docChunks[i] = Chunk{
			Content:   c.Content,
			Embedding: embeddings[i],
			LineStart: c.LineStart,
			LineEnd:   c.LineEnd,
			Language:  c.Language,
		}
	}

	doc := &Document{
		ID:           path + "-" + hash,
		Path:         path,
		Hash:         hash,
		Content:      content,
		Embedding:    fileEmbedding,
		LineCount:    chunk.CountLines(content),
		Size:         size,
		LastModified: mtime,
		Chunks:       docChunks,
	}

	delete(s.documents, path)
	s.documents[path] = doc
	s.metadata.Updated = s.clock()
	return s.persist()
}

// embedWholeFile computes the coarse whole-file embedding over the first
// 2 KB of content prefixed with "File: {path}\n\n", per the data model.
// Empty content embeds nothing and yields a nil vector.
func (s *Store) embedWholeFile(ctx context.Context, path, content string) ([]float32, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	prefix := content
	if len(prefix) > filePrefixBytes {
		prefix = prefix[:filePrefixBytes]
	}
	text := "File: " + path + "\n\n" + prefix

	vectors, err := s.embedder.Embed(ctx, []string{text}, embed.KindDoc)
	if err != nil {
		return nil, errs.Wrap(errs.EmbedderFailure, "embed whole file for "+path, err)
	}
	if len(vectors) != 1 {
		return nil, errs.New(errs.EmbedderFailure, "embedder returned wrong number of vectors for whole-file embed")
	}
	if err := s.checkDimension(vectors); err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// checkDimension enforces that every new embedding has the same
// dimensionality as every other vector already stored, rejecting the batch
// on a mismatch rather than silently mixing dimensionalities.
func (s *Store) checkDimension(vectors [][]float32) error {
	for _, v := range vectors {
		if len(v) == 0 {
			continue
		}
		if s.dimension == 0 {
			s.dimension = len(v)
			continue
		}
		if len(v) != s.dimension {
			return errs.New(errs.EmbedderFailure, "embedding dimension mismatch").
				WithDetail("want", s.dimension).WithDetail("got", len(v))
		}
	}
	return nil
}

// DeleteFile removes the Document for path, if present, and persists.
func (s *Store) DeleteFile(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[path]; !ok {
		return nil
	}
	delete(s.documents, path)
	s.metadata.Updated = s.clock()
	return s.persist()
}

// ListFiles returns the lightweight per-file projection used by the
// Synchronizer's diff, with no embeddings attached.
func (s *Store) ListFiles() []FileMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]FileMetadata, 0, len(s.documents))
	for _, d := range s.documents {
		out = append(out, FileMetadata{
			Path:         d.Path,
			Hash:         d.Hash,
			Size:         d.Size,
			LastModified: d.LastModified,
			LineCount:    d.LineCount,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Documents returns the current document snapshot, for the Retriever. The
// returned slice and Documents are not shared with the store's internal
// map and are safe for the caller to read without further locking.
func (s *Store) Documents() []*Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Document, 0, len(s.documents))
	for _, d := range s.documents {
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// GetInfo summarizes the store for the `info` operation.
func (s *Store) GetInfo() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var totalSize int64
	for _, d := range s.documents {
		totalSize += d.Size
	}
	return Info{
		Name:        s.metadata.Name,
		FileCount:   len(s.documents),
		TotalSize:   totalSize,
		LastUpdated: s.metadata.Updated,
	}
}

// Clear resets the store to empty and removes the persisted file.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.documents = make(map[string]*Document)
	s.dimension = 0
	s.metadata.Updated = s.clock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.StoreIOFailure, "remove store file", err)
	}
	return nil
}
