package recommend

import (
	"fmt"
	"strings"

	"github.com/BTreeMap/Jinny/internal/models"
)

// Confidence thresholds on the data-weighted average score.
const (
	highConfidence   = 0.8
	mediumConfidence = 0.6
	// insights needed before the data factor stops discounting model confidence
	fullDataInsights = 5
)

// AggregateConfidence labels a recommendation set. The average model score is scaled by
// min(insightCount/5, 1), so sparse interviews never report high confidence. An empty set is low.
func AggregateConfidence(recs []models.GiftRecommendation, insightCount int) models.ConfidenceLevel {
	if len(recs) == 0 {
		return models.ConfidenceLow
	}
	var sum float64
	for _, r := range recs {
		sum += r.ConfidenceScore
	}
	dataFactor := min(float64(insightCount)/fullDataInsights, 1.0)
	if dataFactor < 0 {
		dataFactor = 0
	}
	score := sum / float64(len(recs)) * dataFactor
	switch {
	case score >= highConfidence:
		return models.ConfidenceHigh
	case score >= mediumConfidence:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

const summaryFragments = 3

// RecipientSummary describes the recipient in one or two sentences.
func RecipientSummary(p models.PersonaProfile) string {
	base := fmt.Sprintf("The recipient is a %d-year-old %s.", p.Age, p.Gender)
	if len(p.Insights) == 0 {
		return base
	}
	fragments := make([]string, 0, summaryFragments)
	for _, in := range p.Insights {
		if len(fragments) == summaryFragments {
			break
		}
		fragments = append(fragments, fmt.Sprintf("chose '%s' when asked about %s", in.SelectedChoice, strings.ToLower(in.Question)))
	}
	text := "Based on their responses, they " + strings.Join(fragments, ", and they ")
	if len(p.Insights) > summaryFragments {
		text += ", among other preferences."
	}
	return base + " " + text
}
