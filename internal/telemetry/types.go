// Package telemetry defines the typed session-level records produced by the
// upstream analysis stages. Records are constructed at the data-source
// boundary so the rest of the engine never touches loosely-typed rows.
package telemetry

import "time"

// FunnelStage labels a session's progress toward a conversion goal.
type FunnelStage string

// Funnel stages, ordered from first touch to departure.
const (
	StageEntry      FunnelStage = "entry"
	StageEngagement FunnelStage = "engagement"
	StageIntent     FunnelStage = "intent"
	StageConversion FunnelStage = "conversion"
	StageExit       FunnelStage = "exit"
)

// PatternSession is one session's behavioral signals for a single page,
// produced by the pattern-extraction stage. Immutable once retrieved.
type PatternSession struct {
	SessionID string `json:"session_id"`
	PageURL   string `json:"page_url"`

	// EngagementScore is 0-100; higher means deeper interaction.
	EngagementScore float64 `json:"engagement_score"`

	// FrustrationIndicators counts rage clicks, dead clicks, rapid
	// scroll reversals and similar signals observed in the session.
	FrustrationIndicators int `json:"frustration_indicators"`

	// SessionDuration is the session length in seconds.
	SessionDuration float64 `json:"session_duration"`

	AnalyzedAt time.Time `json:"analyzed_at"`
}

// BusinessSession is one session's business signals for a single page,
// produced by the business-insight stage. Immutable once retrieved.
type BusinessSession struct {
	SessionID string `json:"session_id"`
	PageURL   string `json:"page_url"`

	// ConversionProbability is 0.0-1.0.
	ConversionProbability float64 `json:"conversion_probability"`

	// EstimatedRevenueImpact is a non-negative dollar estimate.
	EstimatedRevenueImpact float64 `json:"estimated_revenue_impact"`

	FunnelStage FunnelStage `json:"funnel_stage"`

	// SessionDuration is the session length in seconds.
	SessionDuration float64 `json:"session_duration"`

	AnalyzedAt time.Time `json:"analyzed_at"`
}

// ExperimentResult is one A/B test outcome from the experiment-analysis
// stage. Experiments run longer than single analysis windows, so callers
// query these with a wider lookback.
type ExperimentResult struct {
	TestID         string    `json:"test_id"`
	PageURL        string    `json:"page_url"`
	WinningVariant string    `json:"winning_variant"`
	Confidence     float64   `json:"confidence"`
	ObservedLift   float64   `json:"observed_lift"`
	AnalyzedAt     time.Time `json:"analyzed_at"`
}
