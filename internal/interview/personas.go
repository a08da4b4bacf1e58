package interview

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/Jinny/internal/models"
	"github.com/BTreeMap/Jinny/internal/store"
	"github.com/BTreeMap/Jinny/internal/util"
)

// CreatePersona validates the request and stores a new persona.
func CreatePersona(ctx context.Context, s store.PersonaStore, req models.PersonaRequest) (*models.Persona, error) {
	const op = "CreatePersona"
	if err := req.Validate(); err != nil {
		return nil, models.Invalid(op, err)
	}
	p := models.Persona{
		ID:           util.NewID(),
		Age:          req.Age,
		Gender:       req.Gender,
		Occasion:     req.Occasion,
		Relationship: req.Relationship,
		Budget:       req.Budget,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.CreatePersona(ctx, p); err != nil {
		return nil, models.StorageFailed(op, err)
	}
	slog.Info(op+": persona created", "personaID", p.ID, "occasion", p.Occasion, "relationship", p.Relationship)
	return &p, nil
}

// GetPersona returns the persona or a not-found error.
func GetPersona(ctx context.Context, s store.PersonaStore, id string) (*models.Persona, error) {
	const op = "GetPersona"
	p, err := s.GetPersona(ctx, id)
	if err != nil {
		return nil, models.StorageFailed(op, err)
	}
	if p == nil {
		return nil, models.NotFound(op, fmt.Errorf("persona %s", id))
	}
	return p, nil
}

// ListQuestions returns every question asked about a persona, oldest first.
func ListQuestions(ctx context.Context, s store.Store, personaID string) ([]models.InterviewQuestion, error) {
	const op = "ListQuestions"
	if _, err := GetPersona(ctx, s, personaID); err != nil {
		return nil, err
	}
	qs, err := s.ListQuestions(ctx, personaID)
	if err != nil {
		return nil, models.StorageFailed(op, err)
	}
	return qs, nil
}

// ResetConversation clears the persona's dialogue log so the next batch is initial again.
// Questions and answers are kept.
func ResetConversation(ctx context.Context, s store.Store, personaID string) error {
	const op = "ResetConversation"
	if _, err := GetPersona(ctx, s, personaID); err != nil {
		return err
	}
	if err := s.ClearTurns(ctx, personaID); err != nil {
		return models.StorageFailed(op, err)
	}
	slog.Info(op+": conversation cleared", "personaID", personaID)
	return nil
}
