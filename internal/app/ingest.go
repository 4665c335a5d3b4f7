package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pagelift/pagelift/internal/config"
	"github.com/pagelift/pagelift/internal/store"
	"github.com/pagelift/pagelift/internal/telemetry"
)

var ingestKind string

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.json>",
	Short: "Load session records from JSON files",
	Long: `Load a JSON array of session records into the local store. The --kind flag
selects the record type: pattern (behavioral signals), business (conversion
signals), or experiment (A/B test outcomes).`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestKind, "kind", "pattern", "Record type: pattern, business, or experiment")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if _, err := config.Load(flagConfig); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	db, err := store.Open(config.DBPath())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	var count int

	switch ingestKind {
	case "pattern":
		var sessions []telemetry.PatternSession
		if err := json.Unmarshal(data, &sessions); err != nil {
			return fmt.Errorf("decoding pattern sessions: %w", err)
		}
		if err := db.InsertPatternSessions(ctx, sessions); err != nil {
			return fmt.Errorf("storing pattern sessions: %w", err)
		}
		count = len(sessions)
	case "business":
		var sessions []telemetry.BusinessSession
		if err := json.Unmarshal(data, &sessions); err != nil {
			return fmt.Errorf("decoding business sessions: %w", err)
		}
		if err := db.InsertBusinessSessions(ctx, sessions); err != nil {
			return fmt.Errorf("storing business sessions: %w", err)
		}
		count = len(sessions)
	case "experiment":
		var results []telemetry.ExperimentResult
		if err := json.Unmarshal(data, &results); err != nil {
			return fmt.Errorf("decoding experiment results: %w", err)
		}
		if err := db.InsertExperimentResults(ctx, results); err != nil {
			return fmt.Errorf("storing experiment results: %w", err)
		}
		count = len(results)
	default:
		return fmt.Errorf("unknown record kind %q", ingestKind)
	}

	fmt.Printf("Loaded %d %s records from %s\n", count, ingestKind, args[0])
	return nil
}
