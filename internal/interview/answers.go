package interview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/Jinny/internal/models"
	"github.com/BTreeMap/Jinny/internal/store"
	"github.com/BTreeMap/Jinny/internal/util"
)

// AnswerIngestor persists answer batches and records them in the conversation log.
type AnswerIngestor struct {
	store store.Store
}

// NewAnswerIngestor creates an AnswerIngestor.
func NewAnswerIngestor(s store.Store) *AnswerIngestor {
	return &AnswerIngestor{store: s}
}

// Submit ingests a batch of answers in order.
//
// Items with an empty or repeated question id, an empty chosen text, an unknown question,
// or (when personaID is set) a question owned by another persona are skipped. Each
// persona touched by the batch gets exactly one conversation append. Answers and turns
// for the whole batch are written in one transaction, so a storage failure writes nothing.
func (a *AnswerIngestor) Submit(ctx context.Context, personaID string, items []models.AnswerItem) (models.SubmitAnswersResponse, error) {
	const op = "AnswerIngestor.Submit"
	resp := models.SubmitAnswersResponse{Answers: []models.AnswerRecord{}}
	if len(items) == 0 {
		return resp, nil
	}

	if personaID != "" {
		p, err := a.store.GetPersona(ctx, personaID)
		if err != nil {
			return resp, models.StorageFailed(op, err)
		}
		if p == nil {
			return resp, models.NotFound(op, fmt.Errorf("persona %s", personaID))
		}
	}

	seen := make(map[string]bool, len(items))
	pending := make(map[string]*store.Exchange)
	var order []string // personas in first-seen order
	var records []models.AnswerRecord

	for i, item := range items {
		qid := strings.TrimSpace(item.QuestionID)
		chosen := strings.TrimSpace(item.ChosenText)
		if qid == "" || chosen == "" || seen[qid] {
			slog.Debug(op+": skipping invalid item", "index", i, "questionID", qid)
			continue
		}
		seen[qid] = true

		q, err := a.store.GetQuestion(ctx, qid)
		if err != nil {
			return resp, models.StorageFailed(op, err)
		}
		if q == nil {
			slog.Debug(op+": skipping unknown question", "index", i, "questionID", qid)
			continue
		}
		if personaID != "" && q.PersonaID != personaID {
			slog.Warn(op+": skipping question owned by another persona", "questionID", qid, "personaID", personaID)
			continue
		}

		answer := models.InterviewAnswer{
			ID:           util.NewID(),
			QuestionID:   q.ID,
			SelectedText: MatchChoice(q.Choices, chosen),
			CreatedAt:    time.Now().UTC(),
		}
		records = append(records, models.AnswerRecord{ID: answer.ID, SelectedChoice: answer.SelectedText})

		ex, ok := pending[q.PersonaID]
		if !ok {
			ex = &store.Exchange{PersonaID: q.PersonaID}
			pending[q.PersonaID] = ex
			order = append(order, q.PersonaID)
		}
		ex.Answers = append(ex.Answers, answer)
		ex.Turns = append(ex.Turns, answerTurns(*q, answer.SelectedText)...)
	}

	if len(order) > 0 {
		exchanges := make([]store.Exchange, 0, len(order))
		for _, pid := range order {
			exchanges = append(exchanges, *pending[pid])
		}
		// rows and history for the whole batch commit together
		if err := a.store.RecordExchanges(ctx, exchanges...); err != nil {
			return resp, models.StorageFailed(op, err)
		}
		resp.Answers = records
	}
	resp.SubmittedCount = len(resp.Answers)
	slog.Info(op+": answers submitted", "personaID", personaID, "submitted", resp.SubmittedCount, "received", len(items))
	return resp, nil
}

// SubmitOne answers a single question. Unlike Submit, an unknown question or an empty
// choice is an error rather than a skipped item.
func (a *AnswerIngestor) SubmitOne(ctx context.Context, questionID, chosen string) (models.AnswerRecord, error) {
	const op = "AnswerIngestor.SubmitOne"
	if strings.TrimSpace(chosen) == "" {
		return models.AnswerRecord{}, models.Invalid(op, fmt.Errorf("answer_choice is required"))
	}
	q, err := a.store.GetQuestion(ctx, strings.TrimSpace(questionID))
	if err != nil {
		return models.AnswerRecord{}, models.StorageFailed(op, err)
	}
	if q == nil {
		return models.AnswerRecord{}, models.NotFound(op, fmt.Errorf("question %s", questionID))
	}
	resp, err := a.Submit(ctx, q.PersonaID, []models.AnswerItem{{QuestionID: q.ID, ChosenText: chosen}})
	if err != nil {
		return models.AnswerRecord{}, err
	}
	if len(resp.Answers) == 0 {
		return models.AnswerRecord{}, models.Invalid(op, fmt.Errorf("answer for question %s was not accepted", questionID))
	}
	return resp.Answers[0], nil
}
