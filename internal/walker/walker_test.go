package walker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchgrep/searchgrep/internal/errs"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func drain(t *testing.T, root string, opts Options) ([]File, []Diagnostic) {
	t.Helper()
	w := New()
	var files []File
	var diags []Diagnostic
	for r := range w.Scan(context.Background(), root, opts) {
		if r.File != nil {
			files = append(files, *r.File)
		}
		if r.Diagnostic != nil {
			diags = append(diags, *r.Diagnostic)
		}
	}
	return files, diags
}

func TestScanSkipsDotfilesAndNodeModules(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")
	writeFile(t, root, ".env", "SECRET=1\n")
	writeFile(t, root, "node_modules/left-pad/index.js", "module.exports = {}\n")

	files, _ := drain(t, root, Options{MaxFileSize: 1 << 20, MaxFileCount: 1000})
	paths := map[string]bool{}
	for _, f := range files {
		paths[f.Path] = true
	}
	assert.True(t, paths["main.go"])
	assert.False(t, paths[".env"])
	assert.False(t, paths["node_modules/left-pad/index.js"])
}

func TestScanHonorsGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "*.log\n")
	writeFile(t, root, "app.log", "boom\n")
	writeFile(t, root, "app.go", "package main\n")

	files, _ := drain(t, root, Options{MaxFileSize: 1 << 20, MaxFileCount: 1000})
	paths := map[string]bool{}
	for _, f := range files {
		paths[f.Path] = true
	}
	assert.True(t, paths["app.go"])
	assert.False(t, paths["app.log"])
}

func TestScanEnforcesMaxFileSize(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "big.go", "0123456789")

	_, diags := drain(t, root, Options{MaxFileSize: 5, MaxFileCount: 1000})
	require.Len(t, diags, 1)
	assert.Equal(t, errs.IgnoredFile, diags[0].Err.Kind)
}
