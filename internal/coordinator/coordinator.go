// Package coordinator drives one analysis run end to end: fetch the window's
// session records, aggregate them by page, build recommendations per page
// and category, and persist the batch.
package coordinator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pagelift/pagelift/internal/aggregate"
	"github.com/pagelift/pagelift/internal/insights"
	"github.com/pagelift/pagelift/internal/telemetry"
)

// Run statuses.
const (
	StatusSuccess = "success"
	StatusNoData  = "no_data"
	StatusError   = "error"
)

// experimentWindowFactor widens the experiment lookback relative to the
// session window, since A/B tests span many analysis runs.
const experimentWindowFactor = 7

// sampleSize caps the number of summaries included in a run result.
const sampleSize = 10

// SessionSource supplies the window's session records. *store.DB satisfies
// this.
type SessionSource interface {
	PatternSessionsSince(ctx context.Context, since time.Time) ([]telemetry.PatternSession, error)
	BusinessSessionsSince(ctx context.Context, since time.Time) ([]telemetry.BusinessSession, error)
	ExperimentResultsSince(ctx context.Context, since time.Time) ([]telemetry.ExperimentResult, error)
}

// RecommendationStore persists recommendations and serves existing records
// for history carry-forward. *store.DB satisfies this.
type RecommendationStore interface {
	Recommendation(ctx context.Context, id string) (*insights.Recommendation, error)
	Upsert(ctx context.Context, recs []*insights.Recommendation) insights.UpsertResult
}

// Publisher mirrors the batch to an external warehouse. *warehouse.Client
// satisfies this.
type Publisher interface {
	Publish(ctx context.Context, recs []*insights.Recommendation) (insights.UpsertResult, error)
}

// Summary is one line of a run result's recommendation sample.
type Summary struct {
	ID           string  `json:"recommendation_id"`
	PageURL      string  `json:"page_url"`
	Category     string  `json:"category"`
	Title        string  `json:"title"`
	Severity     string  `json:"severity"`
	PriorityRank int     `json:"priority_rank"`
	Confidence   float64 `json:"confidence"`
}

// RunResult reports what one analysis run did.
type RunResult struct {
	RunID     string        `json:"run_id"`
	Status    string        `json:"status"`
	HoursBack int           `json:"hours_back"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	PatternSessions  int `json:"pattern_sessions"`
	BusinessSessions int `json:"business_sessions"`
	Experiments      int `json:"experiments"`
	PagesAnalyzed    int `json:"pages_analyzed"`
	Generated        int `json:"recommendations_generated"`

	Stored    insights.UpsertResult `json:"stored"`
	Published insights.UpsertResult `json:"published"`

	// Sample holds up to ten of the most urgent recommendations.
	Sample []Summary `json:"sample"`

	Errors []string `json:"errors,omitempty"`
}

// Coordinator wires a session source, a store, and an optional warehouse
// publisher into a runnable engine.
type Coordinator struct {
	source    SessionSource
	store     RecommendationStore
	publisher Publisher

	parallelism int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPublisher mirrors each run's batch to a warehouse.
func WithPublisher(p Publisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

// WithParallelism bounds the number of pages analyzed concurrently.
// Values below 1 fall back to the default of 4.
func WithParallelism(n int) Option {
	return func(c *Coordinator) {
		if n >= 1 {
			c.parallelism = n
		}
	}
}

// New builds a Coordinator over a source and store.
func New(source SessionSource, store RecommendationStore, opts ...Option) *Coordinator {
	c := &Coordinator{source: source, store: store, parallelism: 4}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes one analysis pass over the trailing window of hoursBack
// hours. It never returns a non-nil error together with a useful result:
// fetch failures abort the run, while per-page and per-record failures are
// collected into the result's error list.
func (c *Coordinator) Run(ctx context.Context, hoursBack int) (*RunResult, error) {
	started := time.Now().UTC()
	result := &RunResult{
		RunID:     uuid.NewString(),
		HoursBack: hoursBack,
		StartedAt: started,
	}

	since := started.Add(-time.Duration(hoursBack) * time.Hour)
	experimentSince := started.Add(-time.Duration(hoursBack*experimentWindowFactor) * time.Hour)

	pattern, err := c.source.PatternSessionsSince(ctx, since)
	if err != nil {
		result.Status = StatusError
		return result, fmt.Errorf("fetching pattern sessions: %w", err)
	}
	business, err := c.source.BusinessSessionsSince(ctx, since)
	if err != nil {
		result.Status = StatusError
		return result, fmt.Errorf("fetching business sessions: %w", err)
	}
	experiments, err := c.source.ExperimentResultsSince(ctx, experimentSince)
	if err != nil {
		result.Status = StatusError
		return result, fmt.Errorf("fetching experiment results: %w", err)
	}

	result.PatternSessions = len(pattern)
	result.BusinessSessions = len(business)
	result.Experiments = len(experiments)

	if len(pattern) == 0 && len(business) == 0 {
		result.Status = StatusNoData
		result.Duration = time.Since(started)
		return result, nil
	}

	pages := aggregate.ByPage(pattern, business)
	result.PagesAnalyzed = len(pages)

	recs, buildErrs := c.buildAll(ctx, pages, experiments)
	result.Generated = len(recs)
	result.Errors = append(result.Errors, buildErrs...)

	result.Stored = c.store.Upsert(ctx, recs)
	result.Errors = append(result.Errors, result.Stored.Errors...)

	if c.publisher != nil {
		published, err := c.publisher.Publish(ctx, recs)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("publishing batch: %v", err))
		} else {
			result.Published = published
			result.Errors = append(result.Errors, published.Errors...)
		}
	}

	result.Sample = sample(recs)
	result.Status = StatusSuccess
	result.Duration = time.Since(started)
	return result, nil
}

// buildAll fans out over pages with bounded concurrency. Each page builds
// one recommendation per matched category; a failed build skips that record
// and reports the failure without affecting siblings.
func (c *Coordinator) buildAll(ctx context.Context, pages map[string]*aggregate.Page, experiments []telemetry.ExperimentResult) ([]*insights.Recommendation, []string) {
	var (
		mu   sync.Mutex
		recs []*insights.Recommendation
		errs []string
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)

	for _, page := range pages {
		g.Go(func() error {
			for _, category := range page.Categories() {
				id := insights.RecommendationID(page.PageURL, category)
				existing, err := c.store.Recommendation(ctx, id)
				if err != nil {
					mu.Lock()
					errs = append(errs, fmt.Sprintf("%s/%s: loading existing: %v", page.PageURL, category, err))
					mu.Unlock()
					existing = nil
				}

				rec, err := insights.Build(page, category, existing, experiments)
				if err != nil {
					mu.Lock()
					errs = append(errs, fmt.Sprintf("%s/%s: %v", page.PageURL, category, err))
					mu.Unlock()
					continue
				}

				mu.Lock()
				recs = append(recs, rec)
				mu.Unlock()
			}
			return nil
		})
	}

	// Workers report failures through errs rather than aborting the group.
	_ = g.Wait()

	// Fan-out order is nondeterministic; keep the batch stable for
	// storage and sampling.
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].PriorityRank != recs[j].PriorityRank {
			return recs[i].PriorityRank < recs[j].PriorityRank
		}
		return recs[i].ID < recs[j].ID
	})
	return recs, errs
}

func sample(recs []*insights.Recommendation) []Summary {
	n := len(recs)
	if n > sampleSize {
		n = sampleSize
	}
	out := make([]Summary, 0, n)
	for _, rec := range recs[:n] {
		out = append(out, Summary{
			ID:           rec.ID,
			PageURL:      rec.PageURL,
			Category:     rec.Category,
			Title:        rec.Title,
			Severity:     rec.Severity,
			PriorityRank: rec.PriorityRank,
			Confidence:   rec.Confidence,
		})
	}
	return out
}
