package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/configfile"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a workspace in the current directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		workspaceDir, cfg, err := configfile.Init(dirFlag)
		if err != nil {
			return err
		}
		fmt.Printf("%s initialized %s\n", styleSuccess.Render("✓"), workspaceDir)
		fmt.Printf("  docs:  %s\n", cfg.DocsPath(workspaceDir))
		fmt.Printf("  cache: %s\n", styleDim.Render(cfg.DatabasePath(workspaceDir)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
