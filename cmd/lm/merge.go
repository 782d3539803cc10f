package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/configfile"
	"github.com/loomworks/loom/internal/merge"
	"github.com/loomworks/loom/internal/telemetry"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <base> <ours> <theirs>",
	Short: "Three-way merge of line logs (git merge driver)",
	Long: `Merges two divergent line logs against their common ancestor and writes
the result over the 'ours' file, git's %A convention:

    [merge "loom"]
        name = loom line-log merge
        driver = lm merge %O %A %B

All output goes to stderr; stdout stays clean for git. The merge itself
never fails on entity content: unmergeable bodies fall back to the
freshest copy and are counted in the summary.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// The driver may run outside any workspace (fresh clone, CI); the
		// collision log is then skipped rather than failing the merge.
		workspaceDir := ""
		if dir, err := configfile.FindWorkspace(dirFlag); err == nil {
			workspaceDir = dir
		}

		res, err := merge.MergeJSONLFiles(ctx, workspaceDir, args[0], args[1], args[2])
		if err != nil {
			return err
		}
		telemetry.NewCounters().RecordMerge(ctx, res.Stats.Merged, res.Stats.Fallbacks)

		fmt.Fprintf(os.Stderr, "%s %d merged, %d created, %d kept over deletion, %d dropped",
			styleDim.Render("merge:"), res.Stats.Merged,
			res.Stats.CreatedOurs+res.Stats.CreatedTheirs,
			res.Stats.EditVsDeleteKept, res.Stats.DeletedBoth)
		if res.Stats.Fallbacks > 0 {
			fmt.Fprintf(os.Stderr, ", %s", styleWarn.Render(fmt.Sprintf("%d fallback(s)", res.Stats.Fallbacks)))
		}
		fmt.Fprintln(os.Stderr)
		return nil
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [file...]",
	Short: "Repair line logs git left conflict-marked",
	Long: `Rebuilds both sides of a textually conflicted line log and re-merges
them record by record. With no arguments, both workspace logs are checked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ws, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer ws.Close()

		paths := args
		if len(paths) == 0 {
			paths = ws.Config.LogPaths(ws.Dir)
		}
		for _, path := range paths {
			res, err := merge.ResolveConflictMarkers(ws.Dir, path)
			if err != nil {
				return err
			}
			if res.Stats.Merged+res.Stats.CreatedOurs+res.Stats.CreatedTheirs == 0 {
				fmt.Printf("%s %s clean\n", styleDim.Render("·"), path)
				continue
			}
			fmt.Printf("%s %s: %d re-merged, %d kept from ours, %d from theirs\n",
				styleSuccess.Render("✓"), path,
				res.Stats.Merged, res.Stats.CreatedOurs, res.Stats.CreatedTheirs)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(resolveCmd)
}
