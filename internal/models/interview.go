package models

import (
	"errors"
	"time"
)

// InterviewQuestion is one question offered to the giver. Rows are append-only.
type InterviewQuestion struct {
	ID           string    `json:"id"`
	PersonaID    string    `json:"persona_id"`
	QuestionText string    `json:"question"`
	Choices      []string  `json:"choices"`
	CatalogID    string    `json:"catalog_id,omitempty"` // set when picked from the rule-based catalog
	CreatedAt    time.Time `json:"created_at"`
}

// InterviewAnswer records the choice made for a question.
type InterviewAnswer struct {
	ID           string    `json:"id"`
	QuestionID   string    `json:"question_id"`
	SelectedText string    `json:"selected_choice"`
	CreatedAt    time.Time `json:"created_at"`
}

// AnsweredQuestion joins a question with one of its answers.
type AnsweredQuestion struct {
	Question InterviewQuestion
	Answer   InterviewAnswer
}

// InsightCategory is a coarse topic label derived from question text.
type InsightCategory string

const (
	CategoryInterests     InsightCategory = "interests"
	CategoryStyle         InsightCategory = "style"
	CategoryLifestyle     InsightCategory = "lifestyle"
	CategoryEntertainment InsightCategory = "entertainment"
	CategoryTravel        InsightCategory = "travel"
	CategoryPreferences   InsightCategory = "preferences"
)

// QuestionInsight is derived on demand from an answered question. It is never stored.
type QuestionInsight struct {
	Question         string          `json:"question"`
	SelectedChoice   string          `json:"selected_choice"`
	AvailableChoices []string        `json:"available_choices"`
	Category         InsightCategory `json:"category"`
}

// TurnRole tags a conversation turn for replay to the model.
type TurnRole string

const (
	TurnRoleSystem    TurnRole = "system"
	TurnRoleAssistant TurnRole = "assistant"
	TurnRoleUser      TurnRole = "user"
)

// ConversationTurn is one durable unit of dialogue history for a persona.
// Seq orders turns within a persona; it is assigned by the store on append.
type ConversationTurn struct {
	Seq       int64     `json:"seq"`
	PersonaID string    `json:"persona_id"`
	Role      TurnRole  `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// GeneratedQuestion is the caller-facing view of a newly offered question.
type GeneratedQuestion struct {
	ID           string   `json:"id"`
	QuestionText string   `json:"question"`
	Choices      []string `json:"choices"`
}

// AnswerItem is one entry of an answer batch.
type AnswerItem struct {
	QuestionID string `json:"question_id"`
	ChosenText string `json:"answer_choice"`
}

// SubmitAnswersRequest is the payload for submitting a batch of answers.
type SubmitAnswersRequest struct {
	Answers []AnswerItem `json:"answers"`
}

// ErrMissingAnswers is returned when the batch body has no answers array.
var ErrMissingAnswers = errors.New("answers array is required")

// AnswerRecord is the caller-facing view of a persisted answer.
type AnswerRecord struct {
	ID             string `json:"id"`
	SelectedChoice string `json:"selected_choice"`
}

// SubmitAnswersResponse reports the answers that were persisted.
type SubmitAnswersResponse struct {
	SubmittedCount int            `json:"submitted_count"`
	Answers        []AnswerRecord `json:"answers"`
}
