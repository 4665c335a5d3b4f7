// Package app contains the Cobra command tree for pagelift.
package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pagelift/pagelift/internal/output"
)

var appVersion = "dev"

// SetVersion sets the application version (called from main with ldflags value).
func SetVersion(v string) {
	appVersion = v
	rootCmd.Version = v
}

var (
	flagNoColor bool
	flagJSON    bool
	flagVerbose bool
	flagConfig  string
)

var rootCmd = &cobra.Command{
	Use:   "pagelift",
	Short: "Page-centric insight synthesis for web analytics pipelines",
	Long: `pagelift is the insights stage of a web analytics pipeline. It reads
per-session behavioral and business signals produced by the upstream analysis
stages, aggregates them by page, and synthesizes ranked, idempotent
improvement recommendations with full statistical backing.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("pagelift", appVersion)
		fmt.Println()
		fmt.Println("Use a subcommand:")
		fmt.Println("  ingest           Load session records from JSON files")
		fmt.Println("  run              Analyze the session window and upsert recommendations")
		fmt.Println("  recommendations  List stored recommendations by priority")
		return nil
	},
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setupColor applies the color preference for a command invocation.
func setupColor() {
	output.AutoDetect()
	if flagNoColor {
		output.SetNoColor(true)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: ~/.config/pagelift/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable verbose output")
}
