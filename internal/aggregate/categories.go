package aggregate

// Recommendation categories a page's rollups can trigger.
const (
	CategoryUIDesign       = "ui_design"
	CategoryPerformance    = "performance"
	CategoryConversion     = "conversion_optimization"
	CategoryContent        = "content"
	CategoryUserExperience = "user_experience"
)

// Category trigger thresholds. Fixed design constants, not configuration.
const (
	uiFrustrationThreshold   = 2.0
	uiEngagementThreshold    = 40.0
	perfFrustrationThreshold = 4.0
	conversionThreshold      = 0.4
	contentEngagementFloor   = 30.0
)

// Categories returns the recommendation categories this page's rollups
// trigger, in check order. The checks are not mutually exclusive; a page
// triggering nothing falls back to the single user_experience category.
//
// Note a page with no business sessions reports zero conversion probability,
// which is below the conversion threshold — such pages intentionally trigger
// conversion_optimization rather than being skipped.
func (p *Page) Categories() []string {
	var categories []string

	if p.AvgFrustration >= uiFrustrationThreshold || p.AvgEngagement < uiEngagementThreshold {
		categories = append(categories, CategoryUIDesign)
	}
	if p.AvgFrustration >= perfFrustrationThreshold {
		categories = append(categories, CategoryPerformance)
	}
	if p.AvgConversion < conversionThreshold {
		categories = append(categories, CategoryConversion)
	}
	if p.AvgEngagement < contentEngagementFloor {
		categories = append(categories, CategoryContent)
	}

	if len(categories) == 0 {
		categories = append(categories, CategoryUserExperience)
	}
	return categories
}
