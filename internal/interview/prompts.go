package interview

import (
	"fmt"

	"github.com/BTreeMap/Jinny/internal/models"
)

// Question counts per phase.
const (
	InitialQuestionCount  = 5
	FollowupQuestionCount = 3
)

const questionSchema = `{"questions": [{"question": "string", "choices": ["string", "string", "string", "string"]}], "detective_comment": "string"}`

// initialSystemPrompt embeds the full profile. It is also stored as the first turn of the conversation.
func initialSystemPrompt(p models.PersonaProfile) string {
	budget := p.Budget
	if budget == "" {
		budget = "not specified"
	}
	return fmt.Sprintf(`You are a senior gift psychology consultant and a sharp detective helping a gift giver find the perfect gift.
The recipient profile is: Age=%d, Gender=%s, Occasion=%s, Budget=%s, Relationship=%s.

Ask %d GENERAL questions to understand the recipient's personality and preferences.
The questions should be broad but tailored to the recipient's age, gender, occasion and relationship.
Be witty and clever, but clear. Keep questions short and always ask about the recipient in the third person.

Return JSON that strictly matches this schema with no extra commentary:
%s
- questions: EXACTLY %d items.
- question: concise, specific, third-person phrasing.
- choices: exactly %d options, three specific choices plus "%s" as the last option.
- detective_comment: one or two sentences explaining your reasoning.`,
		p.Age, p.Gender, p.Occasion, budget, p.Relationship,
		InitialQuestionCount, questionSchema, InitialQuestionCount, ChoiceCount, NoneOfTheAbove)
}

const initialUserPrompt = "Help me figure out the best questions to ask about the recipient."

func followupUserPrompt() string {
	return fmt.Sprintf(`Based on the previous conversation, ask %d DEEPER, more specific follow-up questions.
Pay special attention to any "%s" answers: they mark areas where an alternative angle is needed.
NEVER repeat or closely paraphrase a question that was already asked.
Be witty and clever, but clear.

Return JSON that strictly matches this schema with no extra commentary:
%s
- questions: EXACTLY %d items.
- choices: exactly %d options, three specific choices plus "%s" as the last option.`,
		FollowupQuestionCount, NoneOfTheAbove, questionSchema, FollowupQuestionCount, ChoiceCount, NoneOfTheAbove)
}
