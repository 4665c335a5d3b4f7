// Package insights builds fully-populated, idempotent recommendation records
// from per-page aggregates. One recommendation exists per (page URL,
// category) pair and carries its own identity across runs.
package insights

import (
	"time"

	"github.com/pagelift/pagelift/internal/telemetry"
)

// Severity levels for a recommendation.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// Urgency levels for a recommendation.
const (
	UrgencyImmediate  = "immediate"
	UrgencyShortTerm  = "short_term"
	UrgencyMediumTerm = "medium_term"
)

// ConfidencePoint is one entry in a recommendation's append-only
// confidence-evolution history.
type ConfidencePoint struct {
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence"`
	SampleSize int       `json:"sample_size"`
}

// RankPoint is one entry in a recommendation's priority-rank history.
type RankPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Rank      int       `json:"rank"`
}

// PatternEvidence is the behavioral-signal snapshot backing a recommendation.
type PatternEvidence struct {
	AvgEngagement  float64 `json:"average_engagement_score"`
	AvgFrustration float64 `json:"average_frustration_level"`
	MaxFrustration int     `json:"max_frustration_level"`
	SessionCount   int     `json:"session_count"`
	SampleAdequacy string  `json:"sample_adequacy"`
}

// BusinessEvidence is the business-signal snapshot backing a recommendation.
type BusinessEvidence struct {
	AvgConversion           float64                       `json:"average_conversion_probability"`
	TotalRevenueImpact      float64                       `json:"total_revenue_impact"`
	DominantFunnelStage     telemetry.FunnelStage         `json:"dominant_funnel_stage"`
	FunnelStageDistribution map[telemetry.FunnelStage]int `json:"funnel_stage_distribution"`
}

// ExperimentEvidence is the A/B-test snapshot backing a recommendation.
type ExperimentEvidence struct {
	// RelevantTests are the experiment outcomes for this page URL.
	RelevantTests []telemetry.ExperimentResult `json:"relevant_tests"`

	// TotalTests is the number of experiment outcomes in the analysis
	// window across all pages.
	TotalTests int `json:"total_tests"`

	// Covered reports whether at least one experiment targeted this page.
	Covered bool `json:"test_coverage"`
}

// MonitoringPlan describes how to watch the page after implementation.
type MonitoringPlan struct {
	Frequency string   `json:"frequency"`
	Metrics   []string `json:"metrics"`
	Alerts    []string `json:"alerts"`
}

// MetricSnapshot captures the page's key metrics at a point in time, used for
// baseline and target tracking.
type MetricSnapshot struct {
	EngagementScore       float64 `json:"engagement_score"`
	ConversionProbability float64 `json:"conversion_probability"`
	FrustrationLevel      float64 `json:"frustration_level"`
}

// Recommendation is the engine's unit of output and the only entity with
// cross-run identity: ID is a pure function of (PageURL, Category), so
// repeated runs upsert rather than duplicate. Created by Build, persisted by
// a RecommendationStore, never deleted by the engine.
type Recommendation struct {
	ID       string `json:"recommendation_id"`
	PageURL  string `json:"page_url"`
	Category string `json:"recommendation_category"`

	Title       string `json:"title"`
	Description string `json:"description"`

	Severity string `json:"severity"`
	Urgency  string `json:"urgency"`

	// PriorityRank is 1-100; 1 is the most urgent.
	PriorityRank int `json:"business_priority_rank"`

	// Confidence is 0.0-1.0, capped at 0.98.
	Confidence float64 `json:"insight_confidence"`

	// AnalysisCompleteness reflects how much of the intended evidence the
	// engine could gather for this record.
	AnalysisCompleteness float64 `json:"analysis_completeness_score"`

	ConfidenceEvolution []ConfidencePoint `json:"confidence_score_evolution"`
	PriorityEvolution   []RankPoint       `json:"priority_rank_evolution"`

	SessionCount int      `json:"sessions_analyzed_count"`
	SessionIDs   []string `json:"sessions_analyzed_list"`

	SampleAdequacy         string  `json:"sample_size_adequacy"`
	StatisticalPower       float64 `json:"statistical_power"`
	CrossSourceCorrelation float64 `json:"cross_source_correlation"`
	EvidenceStrength       float64 `json:"evidence_strength_score"`
	DataConsistency        float64 `json:"data_consistency_score"`
	OutlierSessions        int     `json:"outlier_sessions_count"`
	DataQuality            float64 `json:"data_quality_score"`
	DataFreshnessHours     float64 `json:"data_freshness_hours"`

	EstimatedRevenueImpact  float64 `json:"estimated_revenue_impact"`
	AvgConversion           float64 `json:"average_conversion_probability"`
	ConversionImpactPercent float64 `json:"conversion_impact_percent"`
	UXImpactScore           float64 `json:"user_experience_impact_score"`
	AvgEngagement           float64 `json:"average_engagement_score"`
	AvgFrustration          float64 `json:"average_frustration_level"`

	DominantFunnelStage     telemetry.FunnelStage         `json:"dominant_funnel_stage"`
	FunnelStageDistribution map[telemetry.FunnelStage]int `json:"funnel_stage_distribution"`

	PatternEvidence    PatternEvidence    `json:"pattern_evidence_aggregated"`
	BusinessEvidence   BusinessEvidence   `json:"business_evidence_aggregated"`
	ExperimentEvidence ExperimentEvidence `json:"ab_test_evidence"`

	Complexity          string   `json:"implementation_complexity"`
	ImplementationHours int      `json:"estimated_implementation_hours"`
	RequiredResources   []string `json:"required_resources"`

	ImmediateActions []string `json:"immediate_actions"`
	ShortTermActions []string `json:"short_term_actions"`
	LongTermActions  []string `json:"long_term_actions"`

	SuccessMetrics  []string       `json:"success_metrics"`
	Monitoring      MonitoringPlan `json:"monitoring_plan"`
	Risks           []string       `json:"implementation_risks"`
	RiskMitigations []string       `json:"risk_mitigation_strategies"`
	RollbackPlan    string         `json:"rollback_plan"`

	AffectedSegments []string `json:"affected_user_segments"`

	BaselineMetrics MetricSnapshot `json:"baseline_metrics"`
	TargetMetrics   MetricSnapshot `json:"target_metrics"`

	MeasurementMethodology string `json:"measurement_methodology"`
	ValidationMethodology  string `json:"validation_methodology"`
	TimelineToImpactDays   int    `json:"expected_timeline_to_impact_days"`

	DashboardPriority bool `json:"dashboard_priority"`
	AlertThresholdMet bool `json:"alert_threshold_met"`

	FirstAnalyzed time.Time `json:"first_analyzed"`
	LastUpdated   time.Time `json:"last_updated"`
}

// UpsertResult reports the outcome of persisting a batch of recommendations.
// Errors holds one message per failed record; failures never abort siblings.
type UpsertResult struct {
	Inserted int      `json:"inserted"`
	Updated  int      `json:"updated"`
	Errors   []string `json:"errors"`
}

// Merge folds another batch result into this one.
func (r *UpsertResult) Merge(other UpsertResult) {
	r.Inserted += other.Inserted
	r.Updated += other.Updated
	r.Errors = append(r.Errors, other.Errors...)
}
