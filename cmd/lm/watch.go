package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/watch"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the docs directory and sync on change",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ws, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer ws.Close()

		docsDir := ws.Config.DocsPath(ws.Dir)
		fmt.Printf("%s watching %s\n", styleDim.Render("·"), docsDir)

		w := watch.New(docsDir, watchDebounce, func(ctx context.Context) error {
			return runSync(ctx, ws)
		})
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce,
		"Quiet period after the last change before syncing")
	rootCmd.AddCommand(watchCmd)
}
