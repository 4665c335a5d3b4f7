package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagelift/pagelift/internal/aggregate"
	"github.com/pagelift/pagelift/internal/insights"
	"github.com/pagelift/pagelift/internal/store"
	"github.com/pagelift/pagelift/internal/telemetry"
)

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// seedTwoPages loads a struggling page /a with two full sessions and a
// healthy page /b with a single pattern-only session.
func seedTwoPages(t *testing.T, db *store.DB) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, db.InsertPatternSessions(ctx, []telemetry.PatternSession{
		{SessionID: "s1", PageURL: "/a", EngagementScore: 80, FrustrationIndicators: 1, AnalyzedAt: now},
		{SessionID: "s2", PageURL: "/a", EngagementScore: 60, FrustrationIndicators: 3, AnalyzedAt: now},
		{SessionID: "s3", PageURL: "/b", EngagementScore: 90, FrustrationIndicators: 0, AnalyzedAt: now},
	}))
	require.NoError(t, db.InsertBusinessSessions(ctx, []telemetry.BusinessSession{
		{SessionID: "s1", PageURL: "/a", ConversionProbability: 0.5, EstimatedRevenueImpact: 300, FunnelStage: telemetry.StageIntent, AnalyzedAt: now},
		{SessionID: "s2", PageURL: "/a", ConversionProbability: 0.7, EstimatedRevenueImpact: 400, FunnelStage: telemetry.StageIntent, AnalyzedAt: now},
	}))
}

func TestRunNoData(t *testing.T) {
	db := openTestDB(t)
	c := New(db, db)

	result, err := c.Run(context.Background(), 24)
	require.NoError(t, err)
	assert.Equal(t, StatusNoData, result.Status)
	assert.NotEmpty(t, result.RunID)
	assert.Zero(t, result.PagesAnalyzed)
	assert.Zero(t, result.Generated)
}

func TestRunEndToEnd(t *testing.T) {
	db := openTestDB(t)
	seedTwoPages(t, db)
	c := New(db, db, WithParallelism(2))

	result, err := c.Run(context.Background(), 24)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, 3, result.PatternSessions)
	assert.Equal(t, 2, result.BusinessSessions)
	assert.Equal(t, 2, result.PagesAnalyzed)
	assert.Equal(t, 2, result.Generated)
	assert.Equal(t, 2, result.Stored.Inserted)
	assert.Zero(t, result.Stored.Updated)
	assert.Empty(t, result.Errors)

	// Frustration averaging 2.0 on /a marks it for UI work.
	recsA, err := db.Recommendations(context.Background(), "/a")
	require.NoError(t, err)
	require.Len(t, recsA, 1)
	assert.Equal(t, aggregate.CategoryUIDesign, recsA[0].Category)
	assert.InDelta(t, 70.0, recsA[0].AvgEngagement, 1e-9)
	assert.InDelta(t, 700.0, recsA[0].EstimatedRevenueImpact, 1e-9)
	assert.ElementsMatch(t, []string{"s1", "s2"}, recsA[0].SessionIDs)

	// /b has no business data, so its conversion reads as zero and the
	// funnel category fires.
	recsB, err := db.Recommendations(context.Background(), "/b")
	require.NoError(t, err)
	require.Len(t, recsB, 1)
	assert.Equal(t, aggregate.CategoryConversion, recsB[0].Category)

	require.NotEmpty(t, result.Sample)
	assert.LessOrEqual(t, len(result.Sample), 10)
	for i := 1; i < len(result.Sample); i++ {
		assert.LessOrEqual(t, result.Sample[i-1].PriorityRank, result.Sample[i].PriorityRank)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	seedTwoPages(t, db)
	c := New(db, db)
	ctx := context.Background()

	first, err := c.Run(ctx, 24)
	require.NoError(t, err)
	require.Equal(t, 2, first.Stored.Inserted)

	second, err := c.Run(ctx, 24)
	require.NoError(t, err)
	assert.Zero(t, second.Stored.Inserted)
	assert.Equal(t, 2, second.Stored.Updated)

	// Re-analysis extends history instead of duplicating records.
	recs, err := db.Recommendations(ctx, "/a")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Len(t, recs[0].ConfidenceEvolution, 2)
	assert.Len(t, recs[0].PriorityEvolution, 2)
	assert.ElementsMatch(t, []string{"s1", "s2"}, recs[0].SessionIDs)
}

type failingSource struct{}

func (f *failingSource) PatternSessionsSince(context.Context, time.Time) ([]telemetry.PatternSession, error) {
	return nil, errors.New("source unavailable")
}

func (f *failingSource) BusinessSessionsSince(context.Context, time.Time) ([]telemetry.BusinessSession, error) {
	return nil, nil
}

func (f *failingSource) ExperimentResultsSince(context.Context, time.Time) ([]telemetry.ExperimentResult, error) {
	return nil, nil
}

func TestRunSourceFailure(t *testing.T) {
	db := openTestDB(t)
	c := New(&failingSource{}, db)

	result, err := c.Run(context.Background(), 24)
	require.Error(t, err)
	assert.Equal(t, StatusError, result.Status)
}

type capturingPublisher struct {
	recs []*insights.Recommendation
	err  error
}

func (p *capturingPublisher) Publish(_ context.Context, recs []*insights.Recommendation) (insights.UpsertResult, error) {
	if p.err != nil {
		return insights.UpsertResult{}, p.err
	}
	p.recs = recs
	return insights.UpsertResult{Inserted: len(recs)}, nil
}

func TestRunPublishesBatch(t *testing.T) {
	db := openTestDB(t)
	seedTwoPages(t, db)
	pub := &capturingPublisher{}
	c := New(db, db, WithPublisher(pub))

	result, err := c.Run(context.Background(), 24)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Published.Inserted)
	assert.Len(t, pub.recs, 2)
}

func TestRunPublishFailureDoesNotAbort(t *testing.T) {
	db := openTestDB(t)
	seedTwoPages(t, db)
	pub := &capturingPublisher{err: errors.New("warehouse down")}
	c := New(db, db, WithPublisher(pub))

	result, err := c.Run(context.Background(), 24)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, 2, result.Stored.Inserted)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "warehouse down")
}

func TestRunExperimentWindowWiderThanSessions(t *testing.T) {
	db := openTestDB(t)
	seedTwoPages(t, db)
	ctx := context.Background()

	// An experiment outcome 3 days old is outside the 24-hour session
	// window but inside the 7x experiment window.
	require.NoError(t, db.InsertExperimentResults(ctx, []telemetry.ExperimentResult{
		{TestID: "t1", PageURL: "/a", WinningVariant: "B", Confidence: 0.93, AnalyzedAt: time.Now().UTC().Add(-72 * time.Hour)},
	}))

	c := New(db, db)
	result, err := c.Run(ctx, 24)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Experiments)

	recs, err := db.Recommendations(ctx, "/a")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].ExperimentEvidence.Covered)
	assert.Equal(t, 1, recs[0].ExperimentEvidence.TotalTests)
}
