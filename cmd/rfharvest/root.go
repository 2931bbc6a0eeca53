package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"rfharvest/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	quiet      bool
)

// rootCmd represents the base command; running it without a subcommand
// starts a harvest
var rootCmd = &cobra.Command{
	Use:   "rfharvest",
	Short: "Harvest dataset listings from Roboflow Universe",
	Long: `rfharvest crawls the Roboflow Universe search interface for dataset
listings, records each discovered project exactly once in a local SQLite
store, and downloads dataset archives through the Roboflow API.

Search terms come from the --terms flag, the RFHARVEST_SEARCH_TERMS
environment variable, an interactive prompt, or a built-in default set.
Configure the API credential with 'rfharvest auth login' or the
ROBOFLOW_API_KEY environment variable; without one, discovered projects
are still recorded but downloads are skipped.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet || logLevel == "error" {
			ui.SetQuietMode(true)
		}

		if cmd.Name() != "version" && cmd.Name() != "help" && cmd.Name() != "completion" {
			ui.PrintLogo()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHarvest(cmd)
	},
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .rfharvest.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.SetVersionTemplate(`rfharvest {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// The bare command harvests, so it takes the harvest flags too
	addHarvestFlags(rootCmd)
}
