// Package aggregate merges per-session records from the pattern and business
// stages into one rollup per distinct page URL, and decides which
// recommendation categories a page's rollups trigger.
package aggregate

import (
	"sort"

	"github.com/pagelift/pagelift/internal/telemetry"
)

// Page is the per-URL aggregate of all contributing sessions. It is an
// intermediate built fresh on every run and never persisted.
type Page struct {
	PageURL string `json:"page_url"`

	// SessionIDs is the sorted union of session IDs across both sources.
	SessionIDs []string `json:"session_ids"`

	// SessionCount is the number of unique contributing sessions.
	SessionCount int `json:"session_count"`

	PatternSessions  []telemetry.PatternSession  `json:"pattern_sessions"`
	BusinessSessions []telemetry.BusinessSession `json:"business_sessions"`

	// Pattern rollups. Zero when the page has no pattern sessions.
	AvgEngagement  float64 `json:"average_engagement_score"`
	AvgFrustration float64 `json:"average_frustration_level"`
	MaxFrustration int     `json:"max_frustration_level"`

	// Business rollups. Exactly zero, not null, when the page has no
	// business sessions.
	AvgConversion      float64 `json:"average_conversion_probability"`
	TotalRevenueImpact float64 `json:"total_revenue_impact"`

	// DominantFunnelStage is the most frequent stage among business
	// sessions; ties resolve to the stage seen first in input order.
	// Defaults to entry when there are no business sessions.
	DominantFunnelStage telemetry.FunnelStage `json:"dominant_funnel_stage"`

	// FunnelStageDistribution maps each observed stage to its count.
	FunnelStageDistribution map[telemetry.FunnelStage]int `json:"funnel_stage_distribution"`
}

// ByPage groups session records by page URL and computes per-page rollups.
// Records without a page URL or session ID are skipped. Pages present in only
// one source still produce a complete aggregate with the other source's
// rollups at their zero values.
func ByPage(pattern []telemetry.PatternSession, business []telemetry.BusinessSession) map[string]*Page {
	pages := make(map[string]*Page)
	seen := make(map[string]map[string]bool)

	get := func(url string) *Page {
		p, ok := pages[url]
		if !ok {
			p = &Page{
				PageURL:                 url,
				FunnelStageDistribution: make(map[telemetry.FunnelStage]int),
			}
			pages[url] = p
			seen[url] = make(map[string]bool)
		}
		return p
	}

	for _, s := range pattern {
		if s.PageURL == "" || s.SessionID == "" {
			continue
		}
		p := get(s.PageURL)
		seen[s.PageURL][s.SessionID] = true
		p.PatternSessions = append(p.PatternSessions, s)
	}

	for _, s := range business {
		if s.PageURL == "" || s.SessionID == "" {
			continue
		}
		p := get(s.PageURL)
		seen[s.PageURL][s.SessionID] = true
		p.BusinessSessions = append(p.BusinessSessions, s)
	}

	for url, p := range pages {
		ids := make([]string, 0, len(seen[url]))
		for id := range seen[url] {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		p.SessionIDs = ids
		p.SessionCount = len(ids)

		rollupPattern(p)
		rollupBusiness(p)
	}

	return pages
}

func rollupPattern(p *Page) {
	if len(p.PatternSessions) == 0 {
		return
	}

	var engagementSum, frustrationSum float64
	maxFrustration := 0
	for _, s := range p.PatternSessions {
		engagementSum += s.EngagementScore
		frustrationSum += float64(s.FrustrationIndicators)
		if s.FrustrationIndicators > maxFrustration {
			maxFrustration = s.FrustrationIndicators
		}
	}

	n := float64(len(p.PatternSessions))
	p.AvgEngagement = engagementSum / n
	p.AvgFrustration = frustrationSum / n
	p.MaxFrustration = maxFrustration
}

func rollupBusiness(p *Page) {
	if len(p.BusinessSessions) == 0 {
		p.DominantFunnelStage = telemetry.StageEntry
		return
	}

	var conversionSum float64
	for _, s := range p.BusinessSessions {
		conversionSum += s.ConversionProbability
		p.TotalRevenueImpact += s.EstimatedRevenueImpact
		p.FunnelStageDistribution[s.FunnelStage]++
	}
	p.AvgConversion = conversionSum / float64(len(p.BusinessSessions))

	// Most frequent stage; on ties the stage encountered first in input
	// order wins, keeping the result deterministic across runs.
	best := 0
	for _, s := range p.BusinessSessions {
		if count := p.FunnelStageDistribution[s.FunnelStage]; count > best {
			best = count
			p.DominantFunnelStage = s.FunnelStage
		}
	}
}
