package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/collision"
)

var collisionsCmd = &cobra.Command{
	Use:   "collisions",
	Short: "Show the identifier renumbering history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer ws.Close()

		entries, err := collision.ReadLog(ws.Dir)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println(styleDim.Render("no collisions recorded"))
			return nil
		}
		for _, entry := range entries {
			fmt.Printf("%s %s %s %s  %s\n",
				styleDim.Render(entry.Timestamp.Format(time.RFC3339)),
				styleID.Render(entry.OldID),
				styleDim.Render("→"),
				styleID.Render(entry.NewID),
				entry.Reason)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(collisionsCmd)
}
