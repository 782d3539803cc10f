package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/storage"
	"github.com/loomworks/loom/internal/types"
)

var (
	listKind   string
	listStatus string
	listTag    string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached entities",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ws, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer ws.Close()

		filter := storage.Filter{
			Kind:   types.Kind(listKind),
			Status: types.Status(listStatus),
			Tag:    listTag,
		}
		entities, err := ws.Store.List(ctx, filter)
		if err != nil {
			return err
		}
		for _, e := range entities {
			line := fmt.Sprintf("%s  %s", styleID.Render(e.ID), e.Title)
			var extras []string
			if e.Kind == types.KindIssue {
				extras = append(extras, string(e.Status))
			}
			if len(e.Tags) > 0 {
				extras = append(extras, strings.Join(e.Tags, ","))
			}
			if len(extras) > 0 {
				line += "  " + styleDim.Render(strings.Join(extras, " · "))
			}
			fmt.Println(line)
		}
		fmt.Println(styleDim.Render(fmt.Sprintf("%d total", len(entities))))
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listKind, "kind", "", "Filter by kind (spec|issue)")
	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by issue status")
	listCmd.Flags().StringVar(&listTag, "tag", "", "Filter by tag")
	rootCmd.AddCommand(listCmd)
}
