package insights

import (
	"fmt"

	"github.com/pagelift/pagelift/internal/aggregate"
	"github.com/pagelift/pagelift/internal/stats"
)

// details holds the human-readable fields derived from a category template.
type details struct {
	title       string
	description string
	complexity  string
}

// categoryDetails renders the title, description, and complexity tier for a
// page and category. Unknown categories fall back to the user_experience
// template.
func categoryDetails(category string, p *aggregate.Page) details {
	switch category {
	case aggregate.CategoryUIDesign:
		complexity := stats.ComplexityModerate
		if p.AvgFrustration >= 4 {
			complexity = stats.ComplexityComplex
		}
		return details{
			title: fmt.Sprintf("Improve UI Design for %s", p.PageURL),
			description: fmt.Sprintf(
				"Based on %d sessions, users show frustration indicators (%.1f) and low engagement (%.1f). UI improvements needed.",
				p.SessionCount, p.AvgFrustration, p.AvgEngagement,
			),
			complexity: complexity,
		}
	case aggregate.CategoryPerformance:
		return details{
			title: fmt.Sprintf("Optimize Performance for %s", p.PageURL),
			description: fmt.Sprintf(
				"High frustration levels (%.1f) across %d sessions indicate performance bottlenecks.",
				p.AvgFrustration, p.SessionCount,
			),
			complexity: stats.ComplexityComplex,
		}
	case aggregate.CategoryConversion:
		return details{
			title: fmt.Sprintf("Optimize Conversion Funnel for %s", p.PageURL),
			description: fmt.Sprintf(
				"Low conversion probability (%.2f) across %d sessions. Funnel optimization needed.",
				p.AvgConversion, p.SessionCount,
			),
			complexity: stats.ComplexityModerate,
		}
	case aggregate.CategoryContent:
		return details{
			title: fmt.Sprintf("Improve Content Strategy for %s", p.PageURL),
			description: fmt.Sprintf(
				"Low engagement (%.1f) across %d sessions suggests content improvements needed.",
				p.AvgEngagement, p.SessionCount,
			),
			complexity: stats.ComplexityModerate,
		}
	default:
		return details{
			title: fmt.Sprintf("Enhance User Experience for %s", p.PageURL),
			description: fmt.Sprintf(
				"General UX improvements recommended based on analysis of %d user sessions.",
				p.SessionCount,
			),
			complexity: stats.ComplexityModerate,
		}
	}
}

// requiredResources returns the roles needed to implement a category.
func requiredResources(category string) []string {
	switch category {
	case aggregate.CategoryUIDesign, aggregate.CategoryUserExperience:
		return []string{"UX Designer", "Frontend Developer"}
	case aggregate.CategoryPerformance:
		return []string{"Performance Engineer", "Frontend Developer"}
	case aggregate.CategoryConversion:
		return []string{"Marketing Analyst", "UX Designer"}
	default:
		return []string{"Content Strategist", "UX Writer"}
	}
}

// implementationHours estimates effort by complexity tier.
func implementationHours(complexity string) int {
	switch complexity {
	case stats.ComplexitySimple:
		return 8
	case stats.ComplexityModerate:
		return 24
	case stats.ComplexityComplex:
		return 80
	case stats.ComplexityMajor:
		return 200
	default:
		return 24
	}
}

// timelineDays estimates days until measurable impact by complexity tier.
func timelineDays(complexity string) int {
	switch complexity {
	case stats.ComplexitySimple:
		return 14
	case stats.ComplexityModerate:
		return 30
	default:
		return 60
	}
}

// actionPlan returns the phased action lists for a recommendation.
func actionPlan(pageURL string) (immediate, shortTerm, longTerm []string) {
	immediate = []string{
		"Analyze current page performance",
		fmt.Sprintf("Review user flows for %s", pageURL),
		"Identify specific friction points",
	}
	shortTerm = []string{
		"Implement targeted improvements",
		"Set up A/B tests for changes",
		"Monitor key metrics",
	}
	longTerm = []string{
		"Continuous optimization based on user feedback",
		"Regular performance reviews",
		"Iterate based on results",
	}
	return immediate, shortTerm, longTerm
}

// successMetrics lists the outcomes that define success for any category.
func successMetrics() []string {
	return []string{
		"Engagement score improvement",
		"Frustration level reduction",
		"Conversion rate increase",
		"User satisfaction scores",
	}
}

// monitoringPlan builds alert thresholds relative to the page's current
// rollups so alerts track regressions from the observed baseline.
func monitoringPlan(p *aggregate.Page) MonitoringPlan {
	return MonitoringPlan{
		Frequency: "weekly",
		Metrics:   []string{"engagement", "conversion", "satisfaction", "performance"},
		Alerts: []string{
			fmt.Sprintf("frustration_level > %.1f", p.AvgFrustration+1),
			fmt.Sprintf("engagement_score < %.1f", p.AvgEngagement-10),
		},
	}
}

// riskPlan returns the implementation risks, their mitigations, and the
// rollback plan shared by all categories.
func riskPlan() (risks, mitigations []string, rollback string) {
	risks = []string{
		"User experience disruption during implementation",
		"Technical complexity",
		"Resource availability",
	}
	mitigations = []string{
		"Gradual rollout to minimize disruption",
		"User testing before full implementation",
		"Rollback plan preparation",
	}
	rollback = "Revert to previous version if key metrics decline by >10%"
	return risks, mitigations, rollback
}
