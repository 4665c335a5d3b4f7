package store

import (
	"context"
	"time"

	"github.com/pagelift/pagelift/internal/telemetry"
)

// InsertPatternSessions stores a batch of pattern-analysis records in a
// single transaction.
func (db *DB) InsertPatternSessions(ctx context.Context, sessions []telemetry.PatternSession) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO pattern_sessions
		(session_id, page_url, engagement_score, frustration_indicators, session_duration, analyzed_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range sessions {
		if _, err := stmt.ExecContext(ctx,
			s.SessionID, s.PageURL, s.EngagementScore, s.FrustrationIndicators,
			s.SessionDuration, s.AnalyzedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// InsertBusinessSessions stores a batch of business-analysis records in a
// single transaction.
func (db *DB) InsertBusinessSessions(ctx context.Context, sessions []telemetry.BusinessSession) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO business_sessions
		(session_id, page_url, conversion_probability, estimated_revenue_impact, funnel_stage, session_duration, analyzed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range sessions {
		if _, err := stmt.ExecContext(ctx,
			s.SessionID, s.PageURL, s.ConversionProbability, s.EstimatedRevenueImpact,
			string(s.FunnelStage), s.SessionDuration, s.AnalyzedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// InsertExperimentResults stores a batch of A/B-test outcomes in a single
// transaction.
func (db *DB) InsertExperimentResults(ctx context.Context, results []telemetry.ExperimentResult) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO experiment_results
		(test_id, page_url, winning_variant, confidence, observed_lift, analyzed_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range results {
		if _, err := stmt.ExecContext(ctx,
			r.TestID, r.PageURL, r.WinningVariant, r.Confidence,
			r.ObservedLift, r.AnalyzedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// PatternSessionsSince returns pattern records analyzed at or after the
// cutoff, oldest first.
func (db *DB) PatternSessionsSince(ctx context.Context, since time.Time) ([]telemetry.PatternSession, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT session_id, page_url, engagement_score, frustration_indicators, session_duration, analyzed_at
		 FROM pattern_sessions WHERE analyzed_at >= ? ORDER BY analyzed_at`,
		since.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var sessions []telemetry.PatternSession
	for rows.Next() {
		var s telemetry.PatternSession
		var analyzedAt string
		if err := rows.Scan(&s.SessionID, &s.PageURL, &s.EngagementScore,
			&s.FrustrationIndicators, &s.SessionDuration, &analyzedAt); err != nil {
			return nil, err
		}
		s.AnalyzedAt, _ = time.Parse(time.RFC3339, analyzedAt)
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// BusinessSessionsSince returns business records analyzed at or after the
// cutoff, oldest first.
func (db *DB) BusinessSessionsSince(ctx context.Context, since time.Time) ([]telemetry.BusinessSession, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT session_id, page_url, conversion_probability, estimated_revenue_impact, funnel_stage, session_duration, analyzed_at
		 FROM business_sessions WHERE analyzed_at >= ? ORDER BY analyzed_at`,
		since.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var sessions []telemetry.BusinessSession
	for rows.Next() {
		var s telemetry.BusinessSession
		var stage, analyzedAt string
		if err := rows.Scan(&s.SessionID, &s.PageURL, &s.ConversionProbability,
			&s.EstimatedRevenueImpact, &stage, &s.SessionDuration, &analyzedAt); err != nil {
			return nil, err
		}
		s.FunnelStage = telemetry.FunnelStage(stage)
		s.AnalyzedAt, _ = time.Parse(time.RFC3339, analyzedAt)
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// ExperimentResultsSince returns experiment outcomes analyzed at or after
// the cutoff, oldest first. Callers typically use a wider lookback here than
// for sessions because experiments run across many analysis windows.
func (db *DB) ExperimentResultsSince(ctx context.Context, since time.Time) ([]telemetry.ExperimentResult, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT test_id, page_url, winning_variant, confidence, observed_lift, analyzed_at
		 FROM experiment_results WHERE analyzed_at >= ? ORDER BY analyzed_at`,
		since.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []telemetry.ExperimentResult
	for rows.Next() {
		var r telemetry.ExperimentResult
		var analyzedAt string
		if err := rows.Scan(&r.TestID, &r.PageURL, &r.WinningVariant,
			&r.Confidence, &r.ObservedLift, &analyzedAt); err != nil {
			return nil, err
		}
		r.AnalyzedAt, _ = time.Parse(time.RFC3339, analyzedAt)
		results = append(results, r)
	}
	return results, rows.Err()
}
