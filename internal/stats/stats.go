// Package stats provides the statistical scoring primitives for the insights
// engine: sample adequacy, cross-source correlation, consistency, outlier
// detection, evidence strength, data quality, and priority ranking.
//
// Every function is pure and total: degenerate inputs (empty series, zero
// variance, zero denominators) return a defined neutral value instead of an
// error. The formulas are deliberately simplified heuristics tuned for
// explainability, not a general-purpose statistics library.
package stats

import (
	"math"

	"github.com/pagelift/pagelift/internal/telemetry"
)

// Sample adequacy tiers returned by SampleAdequacy.
const (
	AdequacyInsufficient = "insufficient"
	AdequacyAdequate     = "adequate"
	AdequacyStrong       = "strong"
	AdequacyExcellent    = "excellent"
)

// Implementation complexity tiers recognized by PriorityRank.
const (
	ComplexitySimple   = "simple"
	ComplexityModerate = "moderate"
	ComplexityComplex  = "complex"
	ComplexityMajor    = "major"
)

// SampleAdequacy classifies a session count into a fixed adequacy tier.
func SampleAdequacy(n int) string {
	switch {
	case n < 5:
		return AdequacyInsufficient
	case n < 20:
		return AdequacyAdequate
	case n < 100:
		return AdequacyStrong
	default:
		return AdequacyExcellent
	}
}

// Power approximates statistical power from sample size alone, using stepped
// thresholds. This is intentionally coarse — it is not a closed-form power
// calculation and callers must not treat it as a rigorous guarantee.
func Power(n int) float64 {
	switch {
	case n < 5:
		return 0.0
	case n < 10:
		return 0.3
	case n < 30:
		return 0.6
	case n < 100:
		return 0.8
	default:
		return 0.95
	}
}

// CrossSourceCorrelation measures how strongly the behavioral and business
// views of the same sessions agree. Sessions are matched by session ID; the
// engagement score (normalized to 0-1) is correlated against the conversion
// probability and the absolute Pearson coefficient is returned — strength
// without sign.
//
// Fewer than 2 matched pairs, or zero variance in either series, returns the
// neutral default 0.5.
func CrossSourceCorrelation(pattern []telemetry.PatternSession, business []telemetry.BusinessSession) float64 {
	// First business record wins when a session ID repeats.
	byID := make(map[string]telemetry.BusinessSession, len(business))
	for _, b := range business {
		if _, ok := byID[b.SessionID]; !ok {
			byID[b.SessionID] = b
		}
	}

	var xs, ys []float64
	for _, p := range pattern {
		b, ok := byID[p.SessionID]
		if !ok {
			continue
		}
		xs = append(xs, p.EngagementScore/100.0)
		ys = append(ys, b.ConversionProbability)
	}

	if len(xs) < 2 {
		return 0.5
	}

	xMean := mean(xs)
	yMean := mean(ys)

	var num, xVar, yVar float64
	for i := range xs {
		dx := xs[i] - xMean
		dy := ys[i] - yMean
		num += dx * dy
		xVar += dx * dx
		yVar += dy * dy
	}

	if xVar == 0 || yVar == 0 {
		return 0.5
	}

	return math.Abs(num / math.Sqrt(xVar*yVar))
}

// ConsistencyScore scores how internally consistent the observed metrics are,
// from 0 (wildly dispersed) to 1 (uniform). Each series holds the values
// observed for one metric; n is the total number of contributing records.
//
// Per series the coefficient of variation (std dev / mean) is converted to
// max(0, 1-CV); a series whose mean is exactly zero scores a perfect 1.0.
// Series with fewer than 2 values are skipped. Fewer than 2 records total
// returns 1.0; no usable series returns the neutral 0.5.
func ConsistencyScore(n int, series ...[]float64) float64 {
	if n < 2 {
		return 1.0
	}

	var scores []float64
	for _, values := range series {
		if len(values) < 2 {
			continue
		}
		m := mean(values)
		if m == 0 {
			scores = append(scores, 1.0)
			continue
		}
		cv := stdDev(values, m) / math.Abs(m)
		scores = append(scores, math.Max(0, 1-cv))
	}

	if len(scores) == 0 {
		return 0.5
	}
	return mean(scores)
}

// EvidenceStrength combines sample size, cross-source correlation, internal
// consistency, and statistical power into a single 0-1 trustworthiness score.
// Weights: sample 0.30, correlation 0.25, consistency 0.25, power 0.20.
func EvidenceStrength(n int, correlation, consistency, power float64) float64 {
	var sample float64
	switch {
	case n >= 100:
		sample = 1.0
	case n >= 30:
		sample = 0.8
	case n >= 10:
		sample = 0.6
	case n >= 5:
		sample = 0.4
	default:
		sample = 0.2
	}

	strength := sample*0.30 + correlation*0.25 + consistency*0.25 + power*0.20
	return clamp01(strength)
}

// OutlierCount counts observations deviating more than 2 standard deviations
// from their metric's mean, totaled across all series — a single record can
// be counted once per metric. Fewer than 3 records total returns 0, and a
// series with zero deviation contributes no flags.
func OutlierCount(n int, series ...[]float64) int {
	if n < 3 {
		return 0
	}

	count := 0
	for _, values := range series {
		if len(values) < 3 {
			continue
		}
		m := mean(values)
		sd := stdDev(values, m)
		if sd == 0 {
			continue
		}
		threshold := 2 * sd
		for _, v := range values {
			if math.Abs(v-m) > threshold {
				count++
			}
		}
	}
	return count
}

// QualityScore rates the overall quality of a page's data from 0 to 1,
// combining a stepped sample-size score with consistency, then subtracting
// penalties for outliers (max 0.3) and missing data (max 0.2).
func QualityScore(n int, consistency float64, outliers int, missingRatio float64) float64 {
	var size float64
	switch {
	case n >= 50:
		size = 1.0
	case n >= 20:
		size = 0.8
	case n >= 10:
		size = 0.6
	case n >= 5:
		size = 0.4
	default:
		size = 0.2
	}

	outlierRatio := float64(outliers) / math.Max(float64(n), 1)
	outlierPenalty := math.Min(0.3, outlierRatio*0.5)
	missingPenalty := math.Min(0.2, missingRatio*0.4)

	return clamp01(size*0.4 + consistency*0.6 - outlierPenalty - missingPenalty)
}

// PriorityRank converts business impact signals into a 1-100 rank where 1 is
// the most urgent. Revenue impact is normalized against a $10k cap and
// conversion impact against 100%; uxImpact is on the 0-100 scale. Unknown
// complexity tiers take a 0.3 penalty.
func PriorityRank(revenueImpact, conversionImpactPct, uxImpact float64, complexity string, confidence float64) int {
	revenue := math.Min(math.Abs(revenueImpact)/10000, 1.0)
	conversion := math.Min(math.Abs(conversionImpactPct)/100, 1.0)
	ux := uxImpact / 100.0

	var penalty float64
	switch complexity {
	case ComplexitySimple:
		penalty = 0.0
	case ComplexityModerate:
		penalty = 0.2
	case ComplexityComplex:
		penalty = 0.4
	case ComplexityMajor:
		penalty = 0.6
	default:
		penalty = 0.3
	}

	boost := confidence * 0.3
	composite := revenue*0.4 + conversion*0.3 + ux*0.2 + boost - penalty

	rank := int(math.Round(101 - composite*100))
	if rank < 1 {
		rank = 1
	}
	if rank > 100 {
		rank = 100
	}
	return rank
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev is the population standard deviation around the given mean.
func stdDev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
