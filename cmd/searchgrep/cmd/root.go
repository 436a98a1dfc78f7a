// Package cmd provides the CLI commands for searchgrep.
package cmd

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/searchgrep/searchgrep/internal/config"
)

var rootPath string

// NewRootCmd creates the root command for the searchgrep CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "searchgrep",
		Short: "Local-first hybrid code search",
		Long: `searchgrep indexes a codebase into a local vector store and answers
queries with hybrid BM25 + semantic search, with an optional chat-backed
answer layer on top.`,
	}

	cmd.PersistentFlags().StringVar(&rootPath, "root", ".", "Project root to operate on")

	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newInfoCmd())
	cmd.AddCommand(newClearCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig resolves the working root to an absolute path and loads its
// merged configuration.
func loadConfig() (string, config.Config, error) {
	root, err := absRoot()
	if err != nil {
		return "", config.Config{}, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return "", config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return root, cfg, nil
}

func absRoot() (string, error) {
	if rootPath == "" || rootPath == "." {
		return os.Getwd()
	}
	return filepath.Abs(rootPath)
}

// storeName derives a stable store name from root, so each project root
// under a shared dataDir gets its own store file.
func storeName(root string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(root)))
	return "index-" + hex.EncodeToString(sum[:8])
}
