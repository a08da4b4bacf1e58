package interview

import (
	"strings"

	"github.com/BTreeMap/Jinny/internal/models"
)

type categoryRule struct {
	category models.InsightCategory
	keywords []string
}

// categoryRules are evaluated in order; the first rule with a keyword contained in the
// lower-cased question text wins.
var categoryRules = []categoryRule{
	{models.CategoryInterests, []string{"hobby", "free time", "weekend", "activity", "sport"}},
	{models.CategoryStyle, []string{"style", "fashion", "look", "wear", "outfit"}},
	{models.CategoryLifestyle, []string{"food", "eat", "drink", "cuisine", "restaurant"}},
	{models.CategoryEntertainment, []string{"music", "movie", "book", "entertainment"}},
	{models.CategoryTravel, []string{"travel", "vacation", "trip", "place"}},
}

// Categorize labels a question by keyword scan, defaulting to preferences.
func Categorize(questionText string) models.InsightCategory {
	text := strings.ToLower(questionText)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.category
			}
		}
	}
	return models.CategoryPreferences
}

// CategoryOrder lists the categories in evaluation order, ending with the default.
func CategoryOrder() []models.InsightCategory {
	out := make([]models.InsightCategory, 0, len(categoryRules)+1)
	for _, rule := range categoryRules {
		out = append(out, rule.category)
	}
	return append(out, models.CategoryPreferences)
}
