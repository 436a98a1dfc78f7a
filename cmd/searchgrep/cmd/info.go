package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/searchgrep/searchgrep/internal/runtime"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print a summary of the current index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInfo(cmd)
		},
	}
}

func runInfo(cmd *cobra.Command) error {
	root, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rt, err := runtime.New(cfg, storeName(root))
	if err != nil {
		return fmt.Errorf("start runtime: %w", err)
	}
	defer func() { _ = rt.Close() }()

	info := rt.Store.GetInfo()
	updated := time.UnixMilli(info.LastUpdated).Format(time.RFC3339)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "store: %s\n", info.Name)
	fmt.Fprintf(out, "files: %d\n", info.FileCount)
	fmt.Fprintf(out, "total size: %d bytes\n", info.TotalSize)
	fmt.Fprintf(out, "last updated: %s\n", updated)
	fmt.Fprintf(out, "embedder: %s (%d dims)\n", rt.Embedder.ModelName(), rt.Embedder.Dimensions())
	return nil
}
