package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/searchgrep/searchgrep/internal/answer"
	"github.com/searchgrep/searchgrep/internal/retrieve"
	"github.com/searchgrep/searchgrep/internal/runtime"
)

func newAskCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Search the codebase and ask the chat collaborator to answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runAsk(cmd, query, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Number of chunks to feed as context")

	return cmd
}

func runAsk(cmd *cobra.Command, query string, limit int) error {
	root, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rt, err := runtime.New(cfg, storeName(root))
	if err != nil {
		return fmt.Errorf("start runtime: %w", err)
	}
	defer func() { _ = rt.Close() }()

	results, err := retrieve.Search(cmd.Context(), rt.Embedder, rt.Store.Documents(), query, limit, retrieve.Options{Hybrid: true})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	text, err := answer.Answer(cmd.Context(), rt.Chat, query, results)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}
