package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/searchgrep/searchgrep/internal/retrieve"
	"github.com/searchgrep/searchgrep/internal/runtime"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit     int
	fileTypes []string
	denseOnly bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed codebase",
		Long: `Runs hybrid BM25 + semantic search over the indexed codebase and prints
the top matching chunks.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringSliceVarP(&opts.fileTypes, "type", "t", nil, "Filter by file extension (repeatable, e.g. --type go)")
	cmd.Flags().BoolVar(&opts.denseOnly, "dense-only", false, "Disable the BM25 pass and score by dense similarity only")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
	root, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rt, err := runtime.New(cfg, storeName(root))
	if err != nil {
		return fmt.Errorf("start runtime: %w", err)
	}
	defer func() { _ = rt.Close() }()

	results, err := retrieve.Search(cmd.Context(), rt.Embedder, rt.Store.Documents(), query, opts.limit, retrieve.Options{
		Hybrid:    !opts.denseOnly,
		FileTypes: opts.fileTypes,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintf(out, "no results for %q\n", query)
		return nil
	}

	for i, r := range results {
		lang := r.Chunk.Language
		if lang == "" {
			lang = "?"
		}
		fmt.Fprintf(out, "%d. %s:%d-%d [%s] (score %.3f)\n", i+1, r.Path, r.Chunk.LineStart, r.Chunk.LineEnd, lang, r.Score)
		for _, line := range firstLines(r.Chunk.Content, 3) {
			fmt.Fprintf(out, "   %s\n", line)
		}
	}
	return nil
}

func firstLines(content string, n int) []string {
	lines := strings.Split(content, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
