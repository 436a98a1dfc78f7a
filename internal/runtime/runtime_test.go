package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchgrep/searchgrep/internal/config"
)

func TestNewOpensStoreAndSelectsEmbedder(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.EmbeddingProvider = "local"

	rt, err := New(cfg, "project")
	require.NoError(t, err)
	defer func() { _ = rt.Close() }()

	assert.NotNil(t, rt.Store)
	assert.NotNil(t, rt.Embedder)
	assert.Nil(t, rt.Chat, "no API key configured, chat should be absent")
}

func TestNewWiresChatWhenAPIKeyPresent(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.EmbeddingProvider = "local"
	cfg.OpenAIAPIKey = "test-key"

	rt, err := New(cfg, "project")
	require.NoError(t, err)
	defer func() { _ = rt.Close() }()

	assert.NotNil(t, rt.Chat)
}

// fakeLocalEmbeddingURL serves the local embedding wire contract with a
// fixed 4-dimensional vector per text, so tests that embed never need a
// running embedding server.
func fakeLocalEmbeddingURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Texts []string `json:"texts"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		vectors := make([][]float32, len(req.Texts))
		for i := range vectors {
			vectors[i] = []float32{1, 0, 0, 0}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": vectors, "model": "fake-local", "dimension": 4})
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestSyncTargetAdaptsEpochMillisecondsToTime(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.EmbeddingProvider = "local"
	cfg.LocalEmbeddingURL = fakeLocalEmbeddingURL(t)

	rt, err := New(cfg, "project")
	require.NoError(t, err)
	defer func() { _ = rt.Close() }()

	target := SyncTarget{Store: rt.Store}
	mtime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	err = target.UpsertFile(context.Background(), "a.go", "package a", "xxh64:abc", 9, mtime.UnixMilli())
	require.NoError(t, err)

	files := target.ListFiles()
	require.Len(t, files, 1)
	assert.Equal(t, "a.go", files[0].Path)

	docs := rt.Store.Documents()
	require.Len(t, docs, 1)
	assert.True(t, docs[0].LastModified.Equal(mtime))
}
