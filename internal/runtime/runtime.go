// Package runtime wires the engine's capabilities (config, embedder, chat,
// clock, store) into one injected Runtime, replacing the package-level
// singletons a smaller tool might reach for.
package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/searchgrep/searchgrep/internal/chat"
	"github.com/searchgrep/searchgrep/internal/config"
	"github.com/searchgrep/searchgrep/internal/embed"
	"github.com/searchgrep/searchgrep/internal/logging"
	"github.com/searchgrep/searchgrep/internal/store"
	"github.com/searchgrep/searchgrep/internal/sync"
)

// Clock returns the current time as epoch milliseconds. Injected so tests
// never depend on the wall clock.
type Clock func() int64

func defaultClock() int64 { return time.Now().UnixMilli() }

// Runtime bundles every capability the engine's operations depend on, per
// section 9's design note: construct one and thread it through instead of
// reaching for a global.
type Runtime struct {
	Config   config.Config
	Embedder embed.Embedder
	Chat     chat.Port
	Clock    Clock
	Store    *store.Store
	Logger   *slog.Logger

	closeLog func()
}

// New constructs a Runtime from cfg: an embedder selected by
// cfg.EmbeddingProvider, a chat collaborator (present only if credentials
// are configured), a store opened at cfg.DataDir, and a JSON logger at
// cfg.LogLevel.
func New(cfg config.Config, storeName string) (*Runtime, error) {
	logger, closeLog, err := logging.Setup(logging.Config{Level: cfg.LogLevel})
	if err != nil {
		return nil, err
	}

	embedder := embed.New(cfg)

	var chatPort chat.Port
	if cfg.OpenAIAPIKey != "" {
		chatPort = chat.New(cfg.BaseURL, cfg.OpenAIAPIKey, cfg.ChatModel)
	}

	s, err := store.Open(cfg.DataDir, storeName, embedder, store.Clock(defaultClock))
	if err != nil {
		closeLog()
		return nil, err
	}

	return &Runtime{
		Config:   cfg,
		Embedder: embedder,
		Chat:     chatPort,
		Clock:    defaultClock,
		Store:    s,
		Logger:   logger,
		closeLog: closeLog,
	}, nil
}

// Close releases the runtime's store lock, embedder connections, and chat
// client.
func (r *Runtime) Close() error {
	var firstErr error
	if r.Store != nil {
		if err := r.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if r.Embedder != nil {
		if err := r.Embedder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if closer, ok := r.Chat.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if r.closeLog != nil {
		r.closeLog()
	}
	return firstErr
}

// SyncTarget adapts Runtime.Store to sync.Target: the store's UpsertFile
// takes a time.Time while the Synchronizer (which only ever has an epoch-ms
// value from a FileInfo) works in epoch milliseconds.
type SyncTarget struct {
	Store *store.Store
}

func (t SyncTarget) ListFiles() []sync.FileMetadata {
	files := t.Store.ListFiles()
	out := make([]sync.FileMetadata, len(files))
	for i, f := range files {
		out[i] = sync.FileMetadata{Path: f.Path, Hash: f.Hash}
	}
	return out
}

func (t SyncTarget) UpsertFile(ctx context.Context, path, content, hash string, size int64, mtime int64) error {
	return t.Store.UpsertFile(ctx, path, content, hash, size, time.UnixMilli(mtime))
}

func (t SyncTarget) DeleteFile(ctx context.Context, path string) error {
	return t.Store.DeleteFile(ctx, path)
}
