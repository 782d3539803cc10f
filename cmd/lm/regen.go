package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var regenCmd = &cobra.Command{
	Use:   "regen",
	Short: "Regenerate document headers from the cache",
	Long: `Rewrites the front matter of every claimed document from its cache
record. Bodies are never touched. Documents deleted from disk are rebuilt
whole.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ws, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer ws.Close()

		if err := regenerateDocs(ctx, ws); err != nil {
			return err
		}
		fmt.Println(styleSuccess.Render("✓") + " headers regenerated")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(regenCmd)
}
