package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/storage"
	"github.com/loomworks/loom/internal/syncer"
	"github.com/loomworks/loom/internal/telemetry"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile documents, cache, and line logs",
	Long: `Imports the line logs, syncs every document into the cache, regenerates
document headers, and exports the cache back to the line logs. Safe to run
repeatedly; an unchanged workspace is a no-op.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ws, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer ws.Close()
		return runSync(ctx, ws)
	},
}

func runSync(ctx context.Context, ws *workspace) error {
	counters := telemetry.NewCounters()

	imported, err := ws.Syncer.Import(ctx, ws.Dir)
	if err != nil {
		return err
	}
	counters.RecordCollisions(ctx, imported.Collisions)

	results, errs := ws.Syncer.SyncAll(ctx, ws.Config.DocsPath(ws.Dir))
	created, updated := 0, 0
	for _, res := range results {
		counters.RecordSync(ctx, string(res.Status))
		switch res.Status {
		case syncer.StatusCreated:
			created++
			fmt.Printf("%s %s %s\n", styleSuccess.Render("+"), styleID.Render(res.Entity.ID), res.Entity.Title)
		case syncer.StatusUpdated:
			updated++
			fmt.Printf("%s %s %s\n", styleSuccess.Render("~"), styleID.Render(res.Entity.ID), res.Entity.Title)
		}
		for _, warning := range res.Warnings {
			fmt.Println(styleWarn.Render("! " + warning))
		}
	}

	if err := regenerateDocs(ctx, ws); err != nil {
		return err
	}
	if err := ws.Syncer.Export(ctx, ws.Dir); err != nil {
		return err
	}

	for _, err := range errs {
		fmt.Println(styleError.Render("✗ ") + err.Error())
	}
	fmt.Printf("%s %d created, %d updated, %d docs synced, %d collisions resolved\n",
		styleDim.Render("sync:"), created+imported.Created, updated+imported.Updated,
		len(results), imported.Collisions)
	if len(errs) > 0 {
		return fmt.Errorf("%d document(s) failed to sync", len(errs))
	}
	return nil
}

func regenerateDocs(ctx context.Context, ws *workspace) error {
	entities, err := ws.Store.List(ctx, storage.Filter{})
	if err != nil {
		return err
	}
	for _, entity := range entities {
		if entity.SourcePath == "" {
			continue
		}
		if _, err := ws.Syncer.CacheToDoc(ctx, entity); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
