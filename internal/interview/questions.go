package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/Jinny/internal/genai"
	"github.com/BTreeMap/Jinny/internal/models"
	"github.com/BTreeMap/Jinny/internal/store"
	"github.com/BTreeMap/Jinny/internal/util"
)

// ErrNoModel is returned when a model-backed operation runs without a configured client.
var ErrNoModel = errors.New("no model client configured")

// Phase is the interview stage, derived from whether conversation history exists.
type Phase int

const (
	PhaseInitial Phase = iota
	PhaseFollowup
)

func (p Phase) String() string {
	if p == PhaseFollowup {
		return "followup"
	}
	return "initial"
}

// QuestionCount is the number of questions requested in this phase.
func (p Phase) QuestionCount() int {
	if p == PhaseFollowup {
		return FollowupQuestionCount
	}
	return InitialQuestionCount
}

// PhaseFor derives the phase from stored history: none means initial.
func PhaseFor(turns []models.ConversationTurn) Phase {
	if len(turns) == 0 {
		return PhaseInitial
	}
	return PhaseFollowup
}

// Opts holds configuration for the model-backed components.
type Opts struct {
	Retry genai.RetryPolicy
}

// Option defines a functional option for the model-backed components.
type Option func(*Opts)

// WithRetryPolicy sets attempts and per-call timeout for model invocations.
func WithRetryPolicy(p genai.RetryPolicy) Option {
	return func(o *Opts) {
		o.Retry = p
	}
}

// ApplyOptions resolves options against the defaults.
func ApplyOptions(opts []Option) Opts {
	cfg := Opts{Retry: genai.DefaultRetryPolicy}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// QuestionGenerator asks the model for the next batch of interview questions.
type QuestionGenerator struct {
	store    store.Store
	profiles *ProfileBuilder
	model    genai.ClientInterface
	retry    genai.RetryPolicy
}

// NewQuestionGenerator creates a generator. model may be nil, in which case Generate fails.
func NewQuestionGenerator(s store.Store, model genai.ClientInterface, opts ...Option) *QuestionGenerator {
	cfg := ApplyOptions(opts)
	return &QuestionGenerator{
		store:    s,
		profiles: NewProfileBuilder(s, s),
		model:    model,
		retry:    cfg.Retry,
	}
}

// Generate produces, persists and returns the next question batch for a persona.
// An empty model reply yields an empty batch and writes nothing.
func (g *QuestionGenerator) Generate(ctx context.Context, personaID string) ([]models.GeneratedQuestion, error) {
	const op = "QuestionGenerator.Generate"
	profile, err := g.profiles.Build(ctx, personaID)
	if err != nil {
		return nil, err
	}
	turns, err := g.store.LoadTurns(ctx, personaID)
	if err != nil {
		return nil, models.StorageFailed(op, err)
	}
	phase := PhaseFor(turns)
	slog.Debug(op+": phase selected", "personaID", personaID, "phase", phase.String(), "turns", len(turns))

	if g.model == nil {
		return nil, models.GenerationFailed(op, ErrNoModel)
	}

	asked, err := g.askedTexts(ctx, personaID)
	if err != nil {
		return nil, models.StorageFailed(op, err)
	}

	var systemPrompt string
	var msgs []genai.Message
	if phase == PhaseInitial {
		systemPrompt = initialSystemPrompt(profile)
		msgs = []genai.Message{
			{Role: genai.RoleSystem, Content: systemPrompt},
			{Role: genai.RoleUser, Content: initialUserPrompt},
		}
	} else {
		msgs = append(ReplayTurns(turns), genai.Message{Role: genai.RoleUser, Content: followupUserPrompt()})
	}

	var batch questionBatch
	err = g.retry.Generate(ctx, g.model, op, msgs, func(raw string) error {
		b, err := parseQuestionBatch(raw, phase.QuestionCount(), asked)
		if err != nil {
			return err
		}
		batch = b
		return nil
	})
	if err != nil {
		slog.Error(op+": generation failed", "personaID", personaID, "phase", phase.String(), "error", err)
		return nil, models.GenerationFailed(op, err)
	}
	if len(batch.items) == 0 {
		slog.Info(op+": model returned no questions", "personaID", personaID, "phase", phase.String())
		return []models.GeneratedQuestion{}, nil
	}

	now := time.Now().UTC()
	rows := make([]models.InterviewQuestion, len(batch.items))
	out := make([]models.GeneratedQuestion, len(batch.items))
	for i, item := range batch.items {
		rows[i] = models.InterviewQuestion{
			ID:           util.NewID(),
			PersonaID:    personaID,
			QuestionText: item.text,
			Choices:      item.choices,
			CreatedAt:    now,
		}
		out[i] = models.GeneratedQuestion{ID: rows[i].ID, QuestionText: item.text, Choices: item.choices}
	}
	var newTurns []models.ConversationTurn
	if phase == PhaseInitial {
		newTurns = append(newTurns, models.ConversationTurn{Role: models.TurnRoleSystem, Content: systemPrompt})
	}
	bt, err := questionBatchTurn(rows, batch.rationale)
	if err != nil {
		return nil, models.StorageFailed(op, err)
	}
	newTurns = append(newTurns, bt)
	if err := g.store.RecordExchanges(ctx, store.Exchange{PersonaID: personaID, Questions: rows, Turns: newTurns}); err != nil {
		return nil, models.StorageFailed(op, err)
	}
	slog.Info(op+": questions generated", "personaID", personaID, "phase", phase.String(), "count", len(out))
	return out, nil
}

func (g *QuestionGenerator) askedTexts(ctx context.Context, personaID string) (map[string]bool, error) {
	qs, err := g.store.ListQuestions(ctx, personaID)
	if err != nil {
		return nil, err
	}
	asked := make(map[string]bool, len(qs))
	for _, q := range qs {
		asked[questionKey(q.QuestionText)] = true
	}
	return asked, nil
}

func questionKey(text string) string {
	return strings.ToLower(cleanChoice(text))
}

type batchItem struct {
	text    string
	choices []string
}

type questionBatch struct {
	items     []batchItem
	rationale string
}

// parseQuestionBatch decodes a question-batch reply. It accepts the object schema or a bare
// array of items, the misspelt "queation" key, and "detective_comment" or "rationale".
// Repeats of already asked questions are dropped; choices are normalised to ChoiceCount
// with NoneOfTheAbove last.
func parseQuestionBatch(raw string, limit int, asked map[string]bool) (questionBatch, error) {
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return questionBatch{}, fmt.Errorf("%w: %v", genai.ErrMalformedOutput, err)
	}

	var b questionBatch
	var items []any
	switch v := decoded.(type) {
	case []any:
		items = v
	case map[string]any:
		list, ok := v["questions"].([]any)
		if !ok {
			return questionBatch{}, fmt.Errorf("%w: missing questions array", genai.ErrMalformedOutput)
		}
		items = list
		b.rationale = firstString(v, "detective_comment", "rationale")
	default:
		return questionBatch{}, fmt.Errorf("%w: unexpected JSON %T", genai.ErrMalformedOutput, decoded)
	}

	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if len(b.items) == limit {
			break
		}
		obj, ok := it.(map[string]any)
		if !ok {
			continue
		}
		text := strings.TrimSpace(firstString(obj, "question", "queation"))
		key := questionKey(text)
		if key == "" || asked[key] || seen[key] {
			continue
		}
		seen[key] = true
		choices := NormalizeChoices(coerceChoices(obj["choices"]), ChoiceCount, DefaultsFor(ChoiceCount))
		b.items = append(b.items, batchItem{text: text, choices: withEscapeOption(choices)})
	}
	if len(items) > 0 && len(b.items) == 0 {
		return questionBatch{}, fmt.Errorf("%w: no usable questions in %d items", genai.ErrMalformedOutput, len(items))
	}
	return b, nil
}

// withEscapeOption moves NoneOfTheAbove to the last slot, replacing the last specific
// choice when the model left it out. Input must already hold ChoiceCount distinct choices.
func withEscapeOption(choices []string) []string {
	specific := make([]string, 0, len(choices))
	for _, c := range choices {
		if !strings.EqualFold(c, NoneOfTheAbove) {
			specific = append(specific, c)
		}
	}
	if len(specific) > len(choices)-1 {
		specific = specific[:len(choices)-1]
	}
	return append(specific, NoneOfTheAbove)
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
