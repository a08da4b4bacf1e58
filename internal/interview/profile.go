package interview

import (
	"context"
	"fmt"

	"github.com/BTreeMap/Jinny/internal/models"
	"github.com/BTreeMap/Jinny/internal/store"
)

var budgetDisplay = map[models.Budget]string{
	models.BudgetUnder50:  "Less than €50",
	models.Budget50To100:  "€50-€100",
	models.Budget100To200: "€100-€200",
	models.BudgetOver200:  "More than €200",
	models.BudgetNoLimit:  "No budget limit",
}

// FormatBudget maps a budget code to its display string. Unknown codes pass through.
func FormatBudget(b models.Budget) string {
	if s, ok := budgetDisplay[b]; ok {
		return s
	}
	return string(b)
}

// ProfileBuilder assembles a PersonaProfile from persisted records. Nothing is cached.
type ProfileBuilder struct {
	personas  store.PersonaStore
	questions store.QuestionStore
}

// NewProfileBuilder creates a ProfileBuilder over the given stores.
func NewProfileBuilder(personas store.PersonaStore, questions store.QuestionStore) *ProfileBuilder {
	return &ProfileBuilder{personas: personas, questions: questions}
}

// Build loads the persona and derives one insight per answered question.
func (b *ProfileBuilder) Build(ctx context.Context, personaID string) (models.PersonaProfile, error) {
	const op = "ProfileBuilder.Build"
	p, err := b.personas.GetPersona(ctx, personaID)
	if err != nil {
		return models.PersonaProfile{}, models.StorageFailed(op, err)
	}
	if p == nil {
		return models.PersonaProfile{}, models.NotFound(op, fmt.Errorf("persona %s", personaID))
	}
	answered, err := b.questions.ListAnsweredQuestions(ctx, personaID)
	if err != nil {
		return models.PersonaProfile{}, models.StorageFailed(op, err)
	}

	gender := string(p.Gender)
	if gender == "" {
		gender = models.GenderUnknown
	}
	return models.PersonaProfile{
		PersonaID:    p.ID,
		Age:          p.Age,
		Gender:       gender,
		Occasion:     string(p.Occasion),
		Relationship: string(p.Relationship),
		Budget:       FormatBudget(p.Budget),
		Insights:     BuildInsights(answered),
	}, nil
}

// BuildInsights computes a QuestionInsight for each answered question, keeping order.
func BuildInsights(answered []models.AnsweredQuestion) []models.QuestionInsight {
	insights := make([]models.QuestionInsight, 0, len(answered))
	for _, aq := range answered {
		choices := aq.Question.Choices
		if choices == nil {
			choices = []string{}
		}
		insights = append(insights, models.QuestionInsight{
			Question:         aq.Question.QuestionText,
			SelectedChoice:   aq.Answer.SelectedText,
			AvailableChoices: choices,
			Category:         Categorize(aq.Question.QuestionText),
		})
	}
	return insights
}

// Summary reports what has been collected about a persona so far.
func (b *ProfileBuilder) Summary(ctx context.Context, personaID string) (models.ProfileSummary, error) {
	profile, err := b.Build(ctx, personaID)
	if err != nil {
		return models.ProfileSummary{}, err
	}
	return models.ProfileSummary{
		Profile: models.ProfileDetails{
			Age:          profile.Age,
			Gender:       profile.Gender,
			Occasion:     profile.Occasion,
			Relationship: profile.Relationship,
			Budget:       profile.Budget,
		},
		Insights:                profile.Insights,
		InsightCount:            len(profile.Insights),
		ReadyForRecommendations: len(profile.Insights) > 0,
	}, nil
}
