package interview

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BTreeMap/Jinny/internal/genai"
	"github.com/BTreeMap/Jinny/internal/models"
)

// ReplayTurns reconstructs model context from stored turns, oldest first.
// It only reads the turns; no model call is made.
func ReplayTurns(turns []models.ConversationTurn) []genai.Message {
	msgs := make([]genai.Message, 0, len(turns))
	for _, t := range turns {
		var role genai.Role
		switch t.Role {
		case models.TurnRoleSystem:
			role = genai.RoleSystem
		case models.TurnRoleAssistant:
			role = genai.RoleAssistant
		default:
			role = genai.RoleUser
		}
		msgs = append(msgs, genai.Message{Role: role, Content: t.Content})
	}
	return msgs
}

type batchQuestion struct {
	Question string   `json:"question"`
	Choices  []string `json:"choices"`
}

type batchTurn struct {
	Questions        []batchQuestion `json:"questions"`
	DetectiveComment string          `json:"detective_comment,omitempty"`
}

// questionBatchTurn records an offered batch as the assistant's own JSON reply.
func questionBatchTurn(qs []models.InterviewQuestion, rationale string) (models.ConversationTurn, error) {
	b := batchTurn{DetectiveComment: rationale}
	for _, q := range qs {
		b.Questions = append(b.Questions, batchQuestion{Question: q.QuestionText, Choices: q.Choices})
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return models.ConversationTurn{}, fmt.Errorf("failed to encode question batch: %w", err)
	}
	return models.ConversationTurn{Role: models.TurnRoleAssistant, Content: string(raw)}, nil
}

// answerTurns records one answered question as an assistant/user exchange.
func answerTurns(q models.InterviewQuestion, chosen string) []models.ConversationTurn {
	return []models.ConversationTurn{
		{Role: models.TurnRoleAssistant, Content: fmt.Sprintf("Question: %s\nChoices: %s", q.QuestionText, strings.Join(q.Choices, " | "))},
		{Role: models.TurnRoleUser, Content: "Answer: " + chosen},
	}
}
