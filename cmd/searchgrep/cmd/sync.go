package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/searchgrep/searchgrep/internal/runtime"
	"github.com/searchgrep/searchgrep/internal/sync"
	"github.com/searchgrep/searchgrep/internal/walker"
)

func newSyncCmd() *cobra.Command {
	var dryRun bool
	var concurrency int

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the index with the files on disk",
		Long: `Walks the project root, diffs it against the store by content hash, and
uploads new/changed files while removing files that no longer exist.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, dryRun, concurrency)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without mutating the store")
	cmd.Flags().IntVar(&concurrency, "concurrency", 10, "Maximum concurrent upload calls")

	return cmd
}

func runSync(cmd *cobra.Command, dryRun bool, concurrency int) error {
	root, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rt, err := runtime.New(cfg, storeName(root))
	if err != nil {
		return fmt.Errorf("start runtime: %w", err)
	}
	defer func() { _ = rt.Close() }()

	scan := walker.New().Scan(cmd.Context(), root, walker.Options{
		MaxFileSize:  cfg.MaxFileSize,
		MaxFileCount: cfg.MaxFileCount,
	})

	out := cmd.OutOrStdout()
	result, err := sync.Sync(cmd.Context(), runtime.SyncTarget{Store: rt.Store}, scan, sync.Options{
		DryRun:      dryRun,
		Concurrency: concurrency,
		OnProgress: func(p sync.Progress) {
			if p.Total > 0 {
				fmt.Fprintf(out, "%s: %d/%d\n", p.Phase, p.Processed, p.Total)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	fmt.Fprintf(out, "uploaded=%d deleted=%d skipped=%d errors=%d duration=%dms\n",
		result.Uploaded, result.Deleted, result.Skipped, len(result.Errors), result.DurationMs)
	for _, e := range result.Errors {
		fmt.Fprintf(out, "  error: %s: %v\n", e.Path, e.Err)
	}
	return nil
}
