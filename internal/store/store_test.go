package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagelift/pagelift/internal/insights"
	"github.com/pagelift/pagelift/internal/telemetry"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Migrate())
	require.NoError(t, db.Migrate())
}

func TestSessionRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	pattern := []telemetry.PatternSession{
		{SessionID: "s1", PageURL: "/a", EngagementScore: 80, FrustrationIndicators: 1, SessionDuration: 120, AnalyzedAt: now},
		{SessionID: "s2", PageURL: "/a", EngagementScore: 60, FrustrationIndicators: 3, SessionDuration: 95, AnalyzedAt: now.Add(-48 * time.Hour)},
	}
	require.NoError(t, db.InsertPatternSessions(ctx, pattern))

	business := []telemetry.BusinessSession{
		{SessionID: "s1", PageURL: "/a", ConversionProbability: 0.5, EstimatedRevenueImpact: 300, FunnelStage: telemetry.StageIntent, SessionDuration: 120, AnalyzedAt: now},
	}
	require.NoError(t, db.InsertBusinessSessions(ctx, business))

	experiments := []telemetry.ExperimentResult{
		{TestID: "t1", PageURL: "/a", WinningVariant: "B", Confidence: 0.93, ObservedLift: 0.08, AnalyzedAt: now},
	}
	require.NoError(t, db.InsertExperimentResults(ctx, experiments))

	// The 48-hour-old pattern record falls outside a 24-hour window.
	got, err := db.PatternSessionsSince(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].SessionID)
	assert.Equal(t, 80.0, got[0].EngagementScore)
	assert.Equal(t, 1, got[0].FrustrationIndicators)
	assert.True(t, got[0].AnalyzedAt.Equal(now))

	gotBiz, err := db.BusinessSessionsSince(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, gotBiz, 1)
	assert.Equal(t, telemetry.StageIntent, gotBiz[0].FunnelStage)
	assert.Equal(t, 0.5, gotBiz[0].ConversionProbability)

	gotExp, err := db.ExperimentResultsSince(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, gotExp, 1)
	assert.Equal(t, "t1", gotExp[0].TestID)
	assert.Equal(t, 0.08, gotExp[0].ObservedLift)
}

func TestSessionsSinceEmpty(t *testing.T) {
	db := openTestDB(t)
	got, err := db.PatternSessionsSince(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testRecommendation(sessionIDs []string) *insights.Recommendation {
	now := time.Now().UTC().Truncate(time.Second)
	return &insights.Recommendation{
		ID:           insights.RecommendationID("/a", "ui_design"),
		PageURL:      "/a",
		Category:     "ui_design",
		Title:        "Improve UI Design for /a",
		Severity:     insights.SeverityMedium,
		Urgency:      insights.UrgencyMediumTerm,
		PriorityRank: 40,
		Confidence:   0.6,
		SessionIDs:   sessionIDs,
		SessionCount: len(sessionIDs),
		ConfidenceEvolution: []insights.ConfidencePoint{
			{Timestamp: now, Confidence: 0.6, SampleSize: len(sessionIDs)},
		},
		PriorityEvolution: []insights.RankPoint{{Timestamp: now, Rank: 40}},
		FirstAnalyzed:     now,
		LastUpdated:       now,
	}
}

func TestUpsertInsertThenUpdate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	first := testRecommendation([]string{"s1", "s2"})
	result := db.Upsert(ctx, []*insights.Recommendation{first})
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 0, result.Updated)
	assert.Empty(t, result.Errors)

	// Same identity with a partially overlapping session list.
	second := testRecommendation([]string{"s2", "s3"})
	second.Confidence = 0.7
	second.PriorityRank = 35
	second.FirstAnalyzed = second.FirstAnalyzed.Add(time.Hour)
	second.LastUpdated = second.LastUpdated.Add(time.Hour)

	result = db.Upsert(ctx, []*insights.Recommendation{second})
	assert.Equal(t, 0, result.Inserted)
	assert.Equal(t, 1, result.Updated)
	assert.Empty(t, result.Errors)

	stored, err := db.Recommendation(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)

	// Session lists merged, dynamic fields refreshed, origin preserved.
	assert.Equal(t, []string{"s1", "s2", "s3"}, stored.SessionIDs)
	assert.Equal(t, 3, stored.SessionCount)
	assert.Equal(t, 0.7, stored.Confidence)
	assert.Equal(t, 35, stored.PriorityRank)
	assert.True(t, stored.FirstAnalyzed.Equal(first.FirstAnalyzed))
	assert.True(t, stored.LastUpdated.After(first.LastUpdated))
}

func TestUpsertRecoversHistoryWithoutBuilderCarry(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	first := testRecommendation([]string{"s1"})
	db.Upsert(ctx, []*insights.Recommendation{first})

	// A fresh single-entry history, as a builder run without the stored
	// record would produce.
	second := testRecommendation([]string{"s1"})
	second.ConfidenceEvolution[0].Timestamp = second.ConfidenceEvolution[0].Timestamp.Add(time.Hour)
	db.Upsert(ctx, []*insights.Recommendation{second})

	stored, err := db.Recommendation(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, stored.ConfidenceEvolution, 2)
	assert.True(t, stored.ConfidenceEvolution[0].Timestamp.Before(stored.ConfidenceEvolution[1].Timestamp))
}

func TestRecommendationMissing(t *testing.T) {
	db := openTestDB(t)
	rec, err := db.Recommendation(context.Background(), "rec_missing00000")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRecommendationsOrderedByRank(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	urgent := testRecommendation([]string{"s1"})
	urgent.ID = insights.RecommendationID("/a", "performance")
	urgent.Category = "performance"
	urgent.PriorityRank = 5

	mild := testRecommendation([]string{"s1"})
	mild.PriorityRank = 60

	other := testRecommendation([]string{"s9"})
	other.ID = insights.RecommendationID("/b", "content")
	other.PageURL = "/b"
	other.Category = "content"
	other.PriorityRank = 1

	result := db.Upsert(ctx, []*insights.Recommendation{mild, urgent, other})
	require.Equal(t, 3, result.Inserted)

	recs, err := db.Recommendations(ctx, "/a")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "performance", recs[0].Category)
	assert.Equal(t, "ui_design", recs[1].Category)

	top, err := db.TopRecommendations(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "/b", top[0].PageURL)
	assert.Equal(t, 5, top[1].PriorityRank)
}
