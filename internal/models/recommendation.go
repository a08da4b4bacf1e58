package models

// ConfidenceLevel summarises model certainty and data completeness.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// DefaultMaxRecommendations is used when the caller does not ask for a count.
const DefaultMaxRecommendations = 5

// GiftRecommendation is a single suggested gift.
type GiftRecommendation struct {
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	PriceRange      string  `json:"price_range"`
	Reasoning       string  `json:"reasoning"`
	ConfidenceScore float64 `json:"confidence_score"`
	Category        string  `json:"category"`
}

// RecommendationRequest parameterises a synthesis call.
type RecommendationRequest struct {
	PersonaID          string
	MaxRecommendations int
	IncludeReasoning   bool
}

// RecommendationResponse is the result of a synthesis call.
type RecommendationResponse struct {
	PersonaID            string               `json:"persona_id"`
	RecipientSummary     string               `json:"recipient_summary"`
	Recommendations      []GiftRecommendation `json:"recommendations"`
	TotalRecommendations int                  `json:"total_recommendations"`
	ConfidenceLevel      ConfidenceLevel      `json:"confidence_level"`
}

// ProfileDetails is the persona half of a profile summary.
type ProfileDetails struct {
	Age          int    `json:"age"`
	Gender       string `json:"gender"`
	Occasion     string `json:"occasion"`
	Relationship string `json:"relationship"`
	Budget       string `json:"budget,omitempty"`
}

// ProfileSummary shows what has been collected about a persona so far.
type ProfileSummary struct {
	Profile                 ProfileDetails    `json:"persona_details"`
	Insights                []QuestionInsight `json:"question_insights"`
	InsightCount            int               `json:"insights_count"`
	ReadyForRecommendations bool              `json:"ready_for_recommendations"`
}
