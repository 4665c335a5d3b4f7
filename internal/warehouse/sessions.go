package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/pagelift/pagelift/internal/telemetry"
)

// MigrateSessions creates the upstream session tables. Deployments where the
// earlier pipeline stages write directly to ClickHouse use the warehouse as
// the session source instead of the local store.
func (c *Client) MigrateSessions(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS pattern_sessions (
			session_id             String,
			page_url               String,
			engagement_score       Float64,
			frustration_indicators Int32,
			session_duration       Float64,
			analyzed_at            DateTime
		)
		ENGINE = MergeTree
		ORDER BY (analyzed_at, page_url)`,

		`CREATE TABLE IF NOT EXISTS business_sessions (
			session_id               String,
			page_url                 String,
			conversion_probability   Float64,
			estimated_revenue_impact Float64,
			funnel_stage             String,
			session_duration         Float64,
			analyzed_at              DateTime
		)
		ENGINE = MergeTree
		ORDER BY (analyzed_at, page_url)`,

		`CREATE TABLE IF NOT EXISTS experiment_results (
			test_id         String,
			page_url        String,
			winning_variant String,
			confidence      Float64,
			observed_lift   Float64,
			analyzed_at     DateTime
		)
		ENGINE = MergeTree
		ORDER BY (analyzed_at, page_url)`,
	}
	for _, stmt := range statements {
		if err := c.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("creating session table: %w", err)
		}
	}
	return nil
}

// InsertPatternSessions batch-inserts pattern records.
func (c *Client) InsertPatternSessions(ctx context.Context, sessions []telemetry.PatternSession) error {
	if len(sessions) == 0 {
		return nil
	}
	batch, err := c.conn.PrepareBatch(ctx, `
		INSERT INTO pattern_sessions (
			session_id, page_url, engagement_score, frustration_indicators,
			session_duration, analyzed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("preparing batch: %w", err)
	}
	for _, s := range sessions {
		if err := batch.Append(
			s.SessionID, s.PageURL, s.EngagementScore,
			int32(s.FrustrationIndicators), s.SessionDuration, s.AnalyzedAt,
		); err != nil {
			return fmt.Errorf("appending %s: %w", s.SessionID, err)
		}
	}
	return batch.Send()
}

// InsertBusinessSessions batch-inserts business records.
func (c *Client) InsertBusinessSessions(ctx context.Context, sessions []telemetry.BusinessSession) error {
	if len(sessions) == 0 {
		return nil
	}
	batch, err := c.conn.PrepareBatch(ctx, `
		INSERT INTO business_sessions (
			session_id, page_url, conversion_probability,
			estimated_revenue_impact, funnel_stage, session_duration, analyzed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("preparing batch: %w", err)
	}
	for _, s := range sessions {
		if err := batch.Append(
			s.SessionID, s.PageURL, s.ConversionProbability,
			s.EstimatedRevenueImpact, string(s.FunnelStage),
			s.SessionDuration, s.AnalyzedAt,
		); err != nil {
			return fmt.Errorf("appending %s: %w", s.SessionID, err)
		}
	}
	return batch.Send()
}

// InsertExperimentResults batch-inserts A/B-test outcomes.
func (c *Client) InsertExperimentResults(ctx context.Context, results []telemetry.ExperimentResult) error {
	if len(results) == 0 {
		return nil
	}
	batch, err := c.conn.PrepareBatch(ctx, `
		INSERT INTO experiment_results (
			test_id, page_url, winning_variant, confidence, observed_lift, analyzed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("preparing batch: %w", err)
	}
	for _, r := range results {
		if err := batch.Append(
			r.TestID, r.PageURL, r.WinningVariant, r.Confidence,
			r.ObservedLift, r.AnalyzedAt,
		); err != nil {
			return fmt.Errorf("appending %s: %w", r.TestID, err)
		}
	}
	return batch.Send()
}

// PatternSessionsSince returns pattern records analyzed at or after the
// cutoff, oldest first.
func (c *Client) PatternSessionsSince(ctx context.Context, since time.Time) ([]telemetry.PatternSession, error) {
	rows, err := c.conn.Query(ctx, `
		SELECT session_id, page_url, engagement_score, frustration_indicators,
		       session_duration, analyzed_at
		FROM pattern_sessions
		WHERE analyzed_at >= ?
		ORDER BY analyzed_at
	`, since)
	if err != nil {
		return nil, fmt.Errorf("querying pattern sessions: %w", err)
	}
	defer rows.Close()

	var sessions []telemetry.PatternSession
	for rows.Next() {
		var s telemetry.PatternSession
		var frustration int32
		if err := rows.Scan(&s.SessionID, &s.PageURL, &s.EngagementScore,
			&frustration, &s.SessionDuration, &s.AnalyzedAt); err != nil {
			return nil, err
		}
		s.FrustrationIndicators = int(frustration)
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// BusinessSessionsSince returns business records analyzed at or after the
// cutoff, oldest first.
func (c *Client) BusinessSessionsSince(ctx context.Context, since time.Time) ([]telemetry.BusinessSession, error) {
	rows, err := c.conn.Query(ctx, `
		SELECT session_id, page_url, conversion_probability,
		       estimated_revenue_impact, funnel_stage, session_duration, analyzed_at
		FROM business_sessions
		WHERE analyzed_at >= ?
		ORDER BY analyzed_at
	`, since)
	if err != nil {
		return nil, fmt.Errorf("querying business sessions: %w", err)
	}
	defer rows.Close()

	var sessions []telemetry.BusinessSession
	for rows.Next() {
		var s telemetry.BusinessSession
		var stage string
		if err := rows.Scan(&s.SessionID, &s.PageURL, &s.ConversionProbability,
			&s.EstimatedRevenueImpact, &stage, &s.SessionDuration, &s.AnalyzedAt); err != nil {
			return nil, err
		}
		s.FunnelStage = telemetry.FunnelStage(stage)
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// ExperimentResultsSince returns experiment outcomes analyzed at or after
// the cutoff, oldest first.
func (c *Client) ExperimentResultsSince(ctx context.Context, since time.Time) ([]telemetry.ExperimentResult, error) {
	rows, err := c.conn.Query(ctx, `
		SELECT test_id, page_url, winning_variant, confidence, observed_lift, analyzed_at
		FROM experiment_results
		WHERE analyzed_at >= ?
		ORDER BY analyzed_at
	`, since)
	if err != nil {
		return nil, fmt.Errorf("querying experiment results: %w", err)
	}
	defer rows.Close()

	var results []telemetry.ExperimentResult
	for rows.Next() {
		var r telemetry.ExperimentResult
		if err := rows.Scan(&r.TestID, &r.PageURL, &r.WinningVariant,
			&r.Confidence, &r.ObservedLift, &r.AnalyzedAt); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
