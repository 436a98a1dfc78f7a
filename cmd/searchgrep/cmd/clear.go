package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/searchgrep/searchgrep/internal/runtime"
)

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every indexed document from the store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runClear(cmd)
		},
	}
}

func runClear(cmd *cobra.Command) error {
	root, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rt, err := runtime.New(cfg, storeName(root))
	if err != nil {
		return fmt.Errorf("start runtime: %w", err)
	}
	defer func() { _ = rt.Close() }()

	if err := rt.Store.Clear(); err != nil {
		return fmt.Errorf("clear failed: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "store cleared")
	return nil
}
