package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbeddingServer mimics the local embedding server's wire contract
// (POST /embeddings -> {embeddings, model, dimension}) with a fixed
// 4-dimensional vector, so CLI integration tests never need real model
// weights or network access.
func fakeEmbeddingServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Texts []string `json:"texts"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		vectors := make([][]float32, len(req.Texts))
		for i := range vectors {
			vectors[i] = []float32{1, 0, 0, 0}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embeddings": vectors,
			"model":      "fake-local",
			"dimension":  4,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRootCmd_HasAllSubcommands(t *testing.T) {
	// Given: the root command
	root := NewRootCmd()

	// When/Then: each verb from the operation set resolves to a subcommand
	for _, name := range []string{"sync", "watch", "search", "ask", "info", "clear"} {
		found, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, found.Name())
	}
}

// withProjectDir sets rootPath to a temp directory containing one file and
// an isolated data dir, restoring state on cleanup. Commands in this package
// read the package-level rootPath flag, so tests must not run in parallel.
func withProjectDir(t *testing.T) (projectDir string) {
	t.Helper()
	embeddingServer := fakeEmbeddingServer(t)

	projectDir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))

	rc := "embeddingProvider: local\n" +
		"localEmbeddingUrl: " + embeddingServer.URL + "\n" +
		"dataDir: " + filepath.Join(projectDir, ".data") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ".searchgreprc.yaml"), []byte(rc), 0o644))

	t.Setenv("HOME", t.TempDir()) // isolate from any real ~/.config/searchgrep/config.yaml

	prevRoot := rootPath
	rootPath = projectDir
	t.Cleanup(func() { rootPath = prevRoot })
	return projectDir
}

func TestSyncThenInfoReflectsIndexedFile(t *testing.T) {
	withProjectDir(t)

	syncCmd := newSyncCmd()
	syncBuf := &bytes.Buffer{}
	syncCmd.SetOut(syncBuf)
	require.NoError(t, syncCmd.Execute())
	assert.Contains(t, syncBuf.String(), "uploaded=1")

	infoCmd := newInfoCmd()
	infoBuf := &bytes.Buffer{}
	infoCmd.SetOut(infoBuf)
	require.NoError(t, infoCmd.Execute())
	assert.Contains(t, infoBuf.String(), "files: 1")
}

func TestClearEmptiesTheStore(t *testing.T) {
	withProjectDir(t)

	require.NoError(t, newSyncCmd().Execute())

	clearBuf := &bytes.Buffer{}
	clearCmd := newClearCmd()
	clearCmd.SetOut(clearBuf)
	require.NoError(t, clearCmd.Execute())
	assert.Contains(t, clearBuf.String(), "cleared")

	infoBuf := &bytes.Buffer{}
	infoCmd := newInfoCmd()
	infoCmd.SetOut(infoBuf)
	require.NoError(t, infoCmd.Execute())
	assert.Contains(t, infoBuf.String(), "files: 0")
}

func TestAskWithoutChatConfiguredFails(t *testing.T) {
	withProjectDir(t)
	require.NoError(t, newSyncCmd().Execute())

	askCmd := newAskCmd()
	askCmd.SetOut(&bytes.Buffer{})
	askCmd.SetArgs([]string{"what", "does", "main", "do"})
	err := askCmd.Execute()
	require.Error(t, err, "ask should fail with NotConfigured when no chat API key is set")
}
