// Command lm tracks specs and issues across markdown documents, a JSONL
// line log, and a local cache, and merges them across git branches.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loomworks/loom/internal/debug"
	"github.com/loomworks/loom/internal/telemetry"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	verboseFlag bool
	quietFlag   bool
	dirFlag     string
)

var rootCmd = &cobra.Command{
	Use:   "lm",
	Short: "lm - branch-mergeable spec and issue tracker",
	Long: `Specs and issues as markdown documents with a git-friendly line log.
Entities keep a stable identity across renames, ID collisions renumber
themselves, and branch merges reconcile line-by-line instead of clobbering.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		applyGlobalSettings()
		if err := telemetry.Init(cmd.Context(), "lm", Version); err != nil {
			debug.Warnf("telemetry init failed: %v\n", err)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		telemetry.Shutdown(ctx)
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// applyGlobalSettings reads the merged flag/env view: LOOM_VERBOSE,
// LOOM_QUIET and LOOM_DIR behave exactly like their flags, with an
// explicitly set flag winning over the environment.
func applyGlobalSettings() {
	if viper.GetBool("verbose") {
		debug.SetVerbose(true)
	}
	if viper.GetBool("quiet") {
		debug.SetQuiet(true)
	}
	dirFlag = viper.GetString("dir")
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().StringVarP(&dirFlag, "dir", "C", ".", "Run as if started in this directory")

	viper.SetEnvPrefix("LOOM")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("dir", rootCmd.PersistentFlags().Lookup("dir"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styleError.Render("Error: ")+err.Error())
		os.Exit(1)
	}
}
