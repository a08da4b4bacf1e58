package interview

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/Jinny/internal/models"
	"github.com/BTreeMap/Jinny/internal/testutil"
)

func TestCreatePersona(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewMemoryStore(t)

	p, err := CreatePersona(ctx, s, testutil.SamplePersonaRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.False(t, p.CreatedAt.IsZero())

	got, err := GetPersona(ctx, s, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Age, got.Age)
	assert.Equal(t, models.OccasionBirthday, got.Occasion)
}

func TestCreatePersona_Invalid(t *testing.T) {
	s := testutil.NewMemoryStore(t)
	for name, mutate := range map[string]func(*models.PersonaRequest){
		"negative age":     func(r *models.PersonaRequest) { r.Age = -1 },
		"unknown occasion": func(r *models.PersonaRequest) { r.Occasion = "funeral" },
		"unknown relation": func(r *models.PersonaRequest) { r.Relationship = "pet" },
		"unknown budget":   func(r *models.PersonaRequest) { r.Budget = "lots" },
	} {
		req := testutil.SamplePersonaRequest()
		mutate(&req)
		_, err := CreatePersona(context.Background(), s, req)
		assert.True(t, errors.Is(err, models.ErrValidation), name)
	}
}

func TestGetPersona_NotFound(t *testing.T) {
	_, err := GetPersona(context.Background(), testutil.NewMemoryStore(t), "missing")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestListQuestions(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewMemoryStore(t)
	p := testutil.SeedPersona(t, s, testutil.SamplePersonaRequest())

	qs, err := ListQuestions(ctx, s, p.ID)
	require.NoError(t, err)
	assert.Empty(t, qs)

	seeded := seedQuestions(t, s, p.ID, "First?", "Second?")
	qs, err = ListQuestions(ctx, s, p.ID)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, seeded[0].ID, qs[0].ID)

	_, err = ListQuestions(ctx, s, "missing")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestResetConversation_RestartsInitialPhase(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewMemoryStore(t)
	p := testutil.SeedPersona(t, s, testutil.SamplePersonaRequest())
	model := testutil.NewScriptedModel(testutil.QuestionBatchJSON("Initial", 5), testutil.QuestionBatchJSON("Again", 5))
	gen := NewQuestionGenerator(s, model, testRetry)

	_, err := gen.Generate(ctx, p.ID)
	require.NoError(t, err)
	require.NoError(t, ResetConversation(ctx, s, p.ID))

	turns, err := s.LoadTurns(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, turns)

	qs, err := gen.Generate(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, qs, InitialQuestionCount, "history cleared means initial phase again")

	stored, _ := s.ListQuestions(ctx, p.ID)
	assert.Len(t, stored, 10, "questions survive a reset")

	assert.True(t, errors.Is(ResetConversation(ctx, s, "missing"), models.ErrNotFound))
}
