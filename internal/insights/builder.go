package insights

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/pagelift/pagelift/internal/aggregate"
	"github.com/pagelift/pagelift/internal/stats"
	"github.com/pagelift/pagelift/internal/telemetry"
)

// ErrMissingPageURL is returned when the supplied aggregate has no page URL.
// This is a caller contract violation, not a data condition.
var ErrMissingPageURL = errors.New("insights: aggregate has no page URL")

// defaultFreshnessHours is reported when no contributing session carries a
// usable timestamp.
const defaultFreshnessHours = 24

// Build creates the recommendation for one page and category. existing may be
// nil (first sighting of this page/category); its confidence and rank
// histories are carried forward and appended to. experiments may be nil.
//
// Build is deterministic given its inputs apart from the run timestamp, and
// never fails for missing optional data — only for an aggregate without a
// page URL.
func Build(p *aggregate.Page, category string, existing *Recommendation, experiments []telemetry.ExperimentResult) (*Recommendation, error) {
	if p == nil || p.PageURL == "" {
		return nil, ErrMissingPageURL
	}

	now := time.Now().UTC()
	records := len(p.PatternSessions) + len(p.BusinessSessions)

	// Metric series for consistency and outlier analysis: engagement and
	// frustration come from pattern sessions, conversion from business
	// sessions. A record only contributes to metrics it actually carries.
	engagement := make([]float64, 0, len(p.PatternSessions))
	frustration := make([]float64, 0, len(p.PatternSessions))
	for _, s := range p.PatternSessions {
		engagement = append(engagement, s.EngagementScore)
		frustration = append(frustration, float64(s.FrustrationIndicators))
	}
	conversion := make([]float64, 0, len(p.BusinessSessions))
	for _, s := range p.BusinessSessions {
		conversion = append(conversion, s.ConversionProbability)
	}

	correlation := stats.CrossSourceCorrelation(p.PatternSessions, p.BusinessSessions)
	consistency := stats.ConsistencyScore(records, engagement, frustration, conversion)
	outliers := stats.OutlierCount(records, engagement, frustration, conversion)
	power := stats.Power(p.SessionCount)
	evidence := stats.EvidenceStrength(p.SessionCount, correlation, consistency, power)

	missingRatio := math.Max(0, 1-float64(records)/math.Max(1, float64(p.SessionCount)))
	quality := stats.QualityScore(p.SessionCount, consistency, outliers, missingRatio)

	confidence := confidenceScore(p.SessionCount, evidence)

	d := categoryDetails(category, p)
	rank := stats.PriorityRank(p.TotalRevenueImpact, p.AvgConversion*100, p.AvgEngagement, d.complexity, confidence)
	severity := severityFor(p.AvgFrustration, p.AvgEngagement, p.TotalRevenueImpact)
	urgency := urgencyFor(severity, rank)

	rec := &Recommendation{
		ID:       RecommendationID(p.PageURL, category),
		PageURL:  p.PageURL,
		Category: category,

		Title:       d.title,
		Description: d.description,

		Severity:             severity,
		Urgency:              urgency,
		PriorityRank:         rank,
		Confidence:           confidence,
		AnalysisCompleteness: 0.9,

		ConfidenceEvolution: appendConfidence(existing, ConfidencePoint{
			Timestamp:  now,
			Confidence: confidence,
			SampleSize: p.SessionCount,
		}),
		PriorityEvolution: appendRank(existing, RankPoint{Timestamp: now, Rank: rank}),

		SessionCount: p.SessionCount,
		SessionIDs:   p.SessionIDs,

		SampleAdequacy:         stats.SampleAdequacy(p.SessionCount),
		StatisticalPower:       power,
		CrossSourceCorrelation: correlation,
		EvidenceStrength:       evidence,
		DataConsistency:        consistency,
		OutlierSessions:        outliers,
		DataQuality:            quality,
		DataFreshnessHours:     freshnessHours(p, now),

		EstimatedRevenueImpact:  p.TotalRevenueImpact,
		AvgConversion:           p.AvgConversion,
		ConversionImpactPercent: math.Max(0, (0.5-p.AvgConversion)*100),
		UXImpactScore:           math.Max(0, 100-p.AvgEngagement),
		AvgEngagement:           p.AvgEngagement,
		AvgFrustration:          p.AvgFrustration,

		DominantFunnelStage:     p.DominantFunnelStage,
		FunnelStageDistribution: p.FunnelStageDistribution,

		PatternEvidence: PatternEvidence{
			AvgEngagement:  p.AvgEngagement,
			AvgFrustration: p.AvgFrustration,
			MaxFrustration: p.MaxFrustration,
			SessionCount:   p.SessionCount,
			SampleAdequacy: stats.SampleAdequacy(p.SessionCount),
		},
		BusinessEvidence: BusinessEvidence{
			AvgConversion:           p.AvgConversion,
			TotalRevenueImpact:      p.TotalRevenueImpact,
			DominantFunnelStage:     p.DominantFunnelStage,
			FunnelStageDistribution: p.FunnelStageDistribution,
		},
		ExperimentEvidence: experimentEvidence(p.PageURL, experiments),

		Complexity:          d.complexity,
		ImplementationHours: implementationHours(d.complexity),
		RequiredResources:   requiredResources(category),

		SuccessMetrics: successMetrics(),
		Monitoring:     monitoringPlan(p),

		AffectedSegments: []string{"all_users"},

		BaselineMetrics: MetricSnapshot{
			EngagementScore:       p.AvgEngagement,
			ConversionProbability: p.AvgConversion,
			FrustrationLevel:      p.AvgFrustration,
		},
		TargetMetrics: targetMetrics(p),

		MeasurementMethodology: "Compare pre/post implementation metrics over 4-week periods",
		ValidationMethodology: fmt.Sprintf(
			"Statistical analysis of %d user sessions with %.0f%% confidence",
			p.SessionCount, confidence*100,
		),
		TimelineToImpactDays: timelineDays(d.complexity),

		DashboardPriority: rank <= 10 || severity == SeverityCritical || severity == SeverityHigh,
		AlertThresholdMet: p.AvgFrustration >= 4 || p.AvgEngagement < 25 || severity == SeverityCritical,

		FirstAnalyzed: now,
		LastUpdated:   now,
	}

	rec.ImmediateActions, rec.ShortTermActions, rec.LongTermActions = actionPlan(p.PageURL)
	rec.Risks, rec.RiskMitigations, rec.RollbackPlan = riskPlan()

	if existing != nil && !existing.FirstAnalyzed.IsZero() {
		rec.FirstAnalyzed = existing.FirstAnalyzed
	}

	return rec, nil
}

// confidenceScore combines a stepped session-count base with evidence
// strength. The cap at 0.98 keeps the engine from ever reporting certainty.
func confidenceScore(sessionCount int, evidence float64) float64 {
	var base float64
	switch {
	case sessionCount >= 100:
		base = 0.95
	case sessionCount >= 30:
		base = 0.85
	case sessionCount >= 10:
		base = 0.70
	default:
		base = 0.50
	}
	return math.Min(0.98, base*(0.7+0.3*evidence))
}

// severityFor applies the severity ladder to the page rollups.
func severityFor(frustration, engagement, revenue float64) string {
	switch {
	case frustration >= 4 || engagement < 20 || revenue >= 5000:
		return SeverityCritical
	case frustration >= 3 || engagement < 30 || revenue >= 1000:
		return SeverityHigh
	case frustration >= 2 || engagement < 50 || revenue >= 100:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// urgencyFor maps severity and priority rank to an urgency tier.
func urgencyFor(severity string, rank int) string {
	switch {
	case severity == SeverityCritical:
		return UrgencyImmediate
	case rank <= 20:
		return UrgencyShortTerm
	default:
		return UrgencyMediumTerm
	}
}

// appendConfidence carries forward the existing confidence history, if any,
// and appends the new point. A missing or nil history starts fresh.
func appendConfidence(existing *Recommendation, point ConfidencePoint) []ConfidencePoint {
	if existing == nil || len(existing.ConfidenceEvolution) == 0 {
		return []ConfidencePoint{point}
	}
	history := make([]ConfidencePoint, 0, len(existing.ConfidenceEvolution)+1)
	history = append(history, existing.ConfidenceEvolution...)
	return append(history, point)
}

func appendRank(existing *Recommendation, point RankPoint) []RankPoint {
	if existing == nil || len(existing.PriorityEvolution) == 0 {
		return []RankPoint{point}
	}
	history := make([]RankPoint, 0, len(existing.PriorityEvolution)+1)
	history = append(history, existing.PriorityEvolution...)
	return append(history, point)
}

// experimentEvidence filters the window's experiment outcomes down to the
// ones targeting this page.
func experimentEvidence(pageURL string, experiments []telemetry.ExperimentResult) ExperimentEvidence {
	var relevant []telemetry.ExperimentResult
	for _, e := range experiments {
		if e.PageURL == pageURL {
			relevant = append(relevant, e)
		}
	}
	return ExperimentEvidence{
		RelevantTests: relevant,
		TotalTests:    len(experiments),
		Covered:       len(relevant) > 0,
	}
}

// targetMetrics sets improvement targets over the baseline: +20 engagement
// capped at 100, +0.2 conversion capped at 1.0, -1 frustration floored at 0.
func targetMetrics(p *aggregate.Page) MetricSnapshot {
	return MetricSnapshot{
		EngagementScore:       math.Min(100, p.AvgEngagement+20),
		ConversionProbability: math.Min(1.0, p.AvgConversion+0.2),
		FrustrationLevel:      math.Max(0, p.AvgFrustration-1),
	}
}

// freshnessHours reports how stale the page's oldest contributing session is,
// floored at one hour. Pages with no usable timestamps report the default.
func freshnessHours(p *aggregate.Page, now time.Time) float64 {
	oldest := now
	found := false
	for _, s := range p.PatternSessions {
		if !s.AnalyzedAt.IsZero() && s.AnalyzedAt.Before(oldest) {
			oldest = s.AnalyzedAt
			found = true
		}
	}
	for _, s := range p.BusinessSessions {
		if !s.AnalyzedAt.IsZero() && s.AnalyzedAt.Before(oldest) {
			oldest = s.AnalyzedAt
			found = true
		}
	}
	if !found {
		return defaultFreshnessHours
	}
	return math.Max(1, now.Sub(oldest).Hours())
}
