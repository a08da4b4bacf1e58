package recommend

import (
	"fmt"
	"strings"

	"github.com/BTreeMap/Jinny/internal/models"
)

// RequestedCount is how many recommendations the model is always asked for.
const RequestedCount = 5

const recommendationSystemPrompt = `You are an expert gift recommendation specialist with years of experience in personalized gifting.

Analyse everything known about the recipient (personal details and interview answers) and recommend the most suitable gifts.
- Consider age, gender, relationship, occasion AND the interview answers. The answers reveal specific interests and personality traits.
- Match gifts to the lifestyle and interests shown through their choices.
- Keep the gift appropriate for the relationship and the occasion.
- Prefer thoughtful, personal gifts over generic ones.

Respond with a JSON object that strictly matches this schema with no extra commentary:
` + recommendationSchema + `
Each recommendation has exactly these fields:
- title: short gift name
- description: detailed description
- price_range: e.g. "€20-€50"
- reasoning: why this fits the recipient
- confidence_score: number between 0.0 and 1.0
- category: gift category such as "books" or "electronics"`

const recommendationSchema = `{"recommendations": [{"title": "string", "description": "string", "price_range": "string", "reasoning": "string", "confidence_score": 0.0, "category": "string"}]}`

func budgetConstraint(p models.PersonaProfile) string {
	if p.Budget == "" {
		return "flexible budget"
	}
	return p.Budget
}

// standalonePrompt embeds the full profile and every insight. It is used when no
// conversation history exists.
func standalonePrompt(p models.PersonaProfile) string {
	var b strings.Builder
	budget := p.Budget
	if budget == "" {
		budget = "No specific budget mentioned"
	}
	fmt.Fprintf(&b, "RECIPIENT PROFILE:\nAge: %d\nGender: %s\nOccasion: %s\nYour Relationship: %s\nBudget: %s\n\nINSIGHTS FROM QUESTIONS & ANSWERS:\n",
		p.Age, p.Gender, p.Occasion, p.Relationship, budget)
	if len(p.Insights) == 0 {
		b.WriteString("(none collected yet)\n")
	}
	for _, in := range p.Insights {
		fmt.Fprintf(&b, "\nQuestion: %q\nAvailable Options: %s\nTheir Choice: %q\nCategory: %s\n",
			in.Question, strings.Join(in.AvailableChoices, ", "), in.SelectedChoice, in.Category)
	}
	fmt.Fprintf(&b, `
TASK: Generate exactly %d gift recommendations in the "recommendations" array.
- %d-year-old %s
- For %s from a %s
- Budget consideration: %s
- Every price_range must respect the budget.`,
		RequestedCount, p.Age, p.Gender, p.Occasion, p.Relationship, budgetConstraint(p))
	return b.String()
}

// conversationPrompt relies on the replayed interview for context.
func conversationPrompt(p models.PersonaProfile) string {
	return fmt.Sprintf(`Based on the conversation above, recommend exactly %d gifts for the recipient.
Ground every recommendation in the answers given during the interview, and treat "None of the above" answers as ruled-out directions.
Budget consideration: %s. Every price_range must respect the budget.
Return JSON that strictly matches this schema:
%s`, RequestedCount, budgetConstraint(p), recommendationSchema)
}
