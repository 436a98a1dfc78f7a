package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/searchgrep/searchgrep/internal/runtime"
	"github.com/searchgrep/searchgrep/internal/watch"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the project root and keep the index up to date",
		Long:  `Runs until interrupted, debouncing filesystem events into store upserts and deletes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd)
		},
	}
	return cmd
}

func runWatch(cmd *cobra.Command) error {
	root, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rt, err := runtime.New(cfg, storeName(root))
	if err != nil {
		return fmt.Errorf("start runtime: %w", err)
	}
	defer func() { _ = rt.Close() }()

	w, err := watch.New(root, rt.Store, rt.Logger)
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "watching %s (ctrl-c to stop)\n", root)
	<-ctx.Done()
	return w.Stop()
}
