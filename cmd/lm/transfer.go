package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the line logs into the cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ws, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer ws.Close()

		res, err := ws.Syncer.Import(ctx, ws.Dir)
		if err != nil {
			return err
		}
		fmt.Printf("%s %d created, %d updated, %d deleted, %d unchanged",
			styleDim.Render("import:"), res.Created, res.Updated, res.Deleted, res.Unchanged)
		if res.Collisions > 0 {
			fmt.Printf(", %s", styleWarn.Render(fmt.Sprintf("%d collision(s) renumbered", res.Collisions)))
		}
		fmt.Println()
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the cache to the line logs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ws, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer ws.Close()

		if err := ws.Syncer.Export(ctx, ws.Dir); err != nil {
			return err
		}
		fmt.Printf("%s exported %s, %s\n", styleSuccess.Render("✓"),
			ws.Config.SpecsLogPath(ws.Dir), ws.Config.IssuesLogPath(ws.Dir))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
}
