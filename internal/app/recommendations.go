package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pagelift/pagelift/internal/config"
	"github.com/pagelift/pagelift/internal/insights"
	"github.com/pagelift/pagelift/internal/output"
	"github.com/pagelift/pagelift/internal/store"
)

var (
	recsLimit int
	recsPage  string
	recsJSON  bool
)

var recommendationsCmd = &cobra.Command{
	Use:     "recommendations",
	Aliases: []string{"recs"},
	Short:   "List stored recommendations by priority",
	Long: `List recommendations from the local store, most urgent first. Filter to a
single page with --page, or dump complete records with --json.`,
	RunE: runRecommendations,
}

func init() {
	recommendationsCmd.Flags().IntVar(&recsLimit, "limit", 10, "Maximum number of recommendations to show")
	recommendationsCmd.Flags().StringVar(&recsPage, "page", "", "Filter to a single page URL")
	recommendationsCmd.Flags().BoolVar(&recsJSON, "json", false, "Output complete records as JSON")
	rootCmd.AddCommand(recommendationsCmd)
}

func runRecommendations(cmd *cobra.Command, args []string) error {
	if _, err := config.Load(flagConfig); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	setupColor()

	db, err := store.Open(config.DBPath())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()

	var recs []*insights.Recommendation
	if recsPage != "" {
		recs, err = db.Recommendations(ctx, recsPage)
	} else {
		recs, err = db.TopRecommendations(ctx, recsLimit)
	}
	if err != nil {
		return fmt.Errorf("querying recommendations: %w", err)
	}

	if recsLimit > 0 && len(recs) > recsLimit {
		recs = recs[:recsLimit]
	}

	if recsJSON || flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}

	renderRecommendations(recs)
	return nil
}

func renderRecommendations(recs []*insights.Recommendation) {
	if len(recs) == 0 {
		fmt.Println(output.Section("Recommendations"))
		fmt.Println()
		fmt.Println(" No recommendations stored. Run 'pagelift run' first.")
		return
	}

	fmt.Println(output.Section("Recommendations"))
	fmt.Println()

	for i, rec := range recs {
		fmt.Printf(" #%d [%d] %s %s\n", i+1, rec.PriorityRank,
			output.StyleSeverity(rec.Severity), output.StyleBold.Render(rec.Title))
		fmt.Printf("    Page: %s  |  Category: %s  |  Sessions: %d\n",
			rec.PageURL, rec.Category, rec.SessionCount)
		fmt.Printf("    Confidence: %s  Evidence: %s\n",
			output.ScoreBar(rec.Confidence*100, 20), rec.SampleAdequacy)
		if rankDelta := rankChange(rec); rankDelta != 0 {
			fmt.Printf("    Rank trend: %s\n", output.TrendArrow(rankDelta, false))
		}
		if flagVerbose {
			fmt.Printf("    %s\n", rec.Description)
			fmt.Printf("    Revenue impact: $%.0f  |  Est. effort: %dh (%s)\n",
				rec.EstimatedRevenueImpact, rec.ImplementationHours, rec.Complexity)
		}
		fmt.Println()
	}
}

// rankChange reports the priority-rank delta between the two most recent
// history entries, or 0 when there is no history to compare.
func rankChange(rec *insights.Recommendation) float64 {
	n := len(rec.PriorityEvolution)
	if n < 2 {
		return 0
	}
	return float64(rec.PriorityEvolution[n-1].Rank - rec.PriorityEvolution[n-2].Rank)
}
