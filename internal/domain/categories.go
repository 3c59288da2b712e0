package domain

import "strings"

// GenericCategory is the style used for categories the view does not know.
const GenericCategory = "general"

// knownCategories are the term categories the backend assigns.
var knownCategories = map[string]bool{
	"payment":  true,
	"policy":   true,
	"process":  true,
	"coverage": true,
	"medical":  true,
	"legal":    true,
	"benefit":  true,
	"general":  true,
}

// CategoryStyle maps a term category to a display style key. Unknown or
// empty categories map to GenericCategory.
func CategoryStyle(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	if knownCategories[c] {
		return c
	}
	return GenericCategory
}

var suggestedQuestions = map[InsuranceType][]string{
	InsuranceHealth: {
		"Is my spouse covered under this plan?",
		"How does this policy handle pre-existing conditions?",
		"What preventive care is included?",
	},
	InsuranceLife: {
		"How do I make sure my spouse gets the benefit?",
		"How does the cash value in this policy grow over time?",
		"What happens if I'm diagnosed with a terminal illness?",
	},
	InsuranceDisability: {
		"How would disability be determined for my occupation?",
		"Does this policy protect my income if I can only work part-time?",
		"When would benefits begin after surgery?",
	},
}

// SuggestedQuestions returns starter questions for an insurance type.
func SuggestedQuestions(t InsuranceType) []string {
	return suggestedQuestions[t]
}
