package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pagelift/pagelift/internal/config"
	"github.com/pagelift/pagelift/internal/coordinator"
	"github.com/pagelift/pagelift/internal/output"
	"github.com/pagelift/pagelift/internal/store"
	"github.com/pagelift/pagelift/internal/warehouse"
)

var (
	runHours   int
	runJSON    bool
	runPublish bool
	runSource  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Analyze the session window and upsert recommendations",
	Long: `Fetch the trailing window of session records, aggregate them by page,
build one recommendation per page and matched category, and upsert the batch
into the local store. With --publish (or warehouse.enabled in config) the
batch is also mirrored to ClickHouse.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVar(&runHours, "hours", 0, "Session lookback window in hours (default from config)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Output the run result as JSON")
	runCmd.Flags().BoolVar(&runPublish, "publish", false, "Mirror the batch to the configured warehouse")
	runCmd.Flags().StringVar(&runSource, "source", "local", "Session source: local (SQLite) or warehouse (ClickHouse)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	setupColor()

	hours := cfg.Analysis.HoursBack
	if runHours > 0 {
		hours = runHours
	}

	db, err := store.Open(config.DBPath())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	opts := []coordinator.Option{coordinator.WithParallelism(cfg.Analysis.Parallelism)}
	var source coordinator.SessionSource = db

	if runPublish || runSource == "warehouse" || cfg.Warehouse.Enabled {
		client, err := warehouse.Open(ctx, warehouse.Config{
			Addr:     cfg.Warehouse.Addr,
			Database: cfg.Warehouse.Database,
			Username: cfg.Warehouse.Username,
			Password: cfg.Warehouse.Password,
		})
		if err != nil {
			return fmt.Errorf("connecting to warehouse: %w", err)
		}
		defer client.Close()
		if err := client.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating warehouse: %w", err)
		}
		opts = append(opts, coordinator.WithPublisher(client))

		// Deployments where upstream stages write straight to ClickHouse
		// read the session window from the warehouse instead.
		if runSource == "warehouse" {
			if err := client.MigrateSessions(ctx); err != nil {
				return fmt.Errorf("migrating warehouse session tables: %w", err)
			}
			source = client
		}
	}

	c := coordinator.New(source, db, opts...)
	result, err := c.Run(ctx, hours)
	if err != nil {
		return err
	}

	if runJSON || flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	renderRunResult(result)
	return nil
}

func renderRunResult(result *coordinator.RunResult) {
	fmt.Println(output.Section("Analysis Run"))
	fmt.Println()
	fmt.Printf(" Run %s finished in %s: %s\n", result.RunID, result.Duration.Round(time.Millisecond), styleStatus(result.Status))
	fmt.Println()

	if result.Status == coordinator.StatusNoData {
		fmt.Printf(" No session records in the last %d hours.\n", result.HoursBack)
		return
	}

	fmt.Printf(" Sessions: %d pattern, %d business, %d experiments\n",
		result.PatternSessions, result.BusinessSessions, result.Experiments)
	fmt.Printf(" Pages analyzed: %d\n", result.PagesAnalyzed)
	fmt.Printf(" Recommendations: %d generated (%d new, %d updated)\n",
		result.Generated, result.Stored.Inserted, result.Stored.Updated)

	if len(result.Sample) > 0 {
		fmt.Println(output.Section("Top Recommendations"))
		fmt.Println()
		tbl := output.NewTable("Rank", "Severity", "Page", "Title", "Confidence")
		for _, s := range result.Sample {
			tbl.AddRow(
				fmt.Sprintf("%d", s.PriorityRank),
				output.StyleSeverity(s.Severity),
				s.PageURL,
				s.Title,
				fmt.Sprintf("%.0f%%", s.Confidence*100),
			)
		}
		tbl.Print()
	}

	if len(result.Errors) > 0 {
		fmt.Println(output.Section("Errors"))
		fmt.Println()
		for _, e := range result.Errors {
			fmt.Printf(" %s %s\n", output.StyleError.Render("✗"), e)
		}
	}
}

func styleStatus(status string) string {
	switch status {
	case coordinator.StatusSuccess:
		return output.StyleSuccess.Render(status)
	case coordinator.StatusNoData:
		return output.StyleWarning.Render(status)
	default:
		return output.StyleError.Render(status)
	}
}
