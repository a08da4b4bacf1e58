// Package recommend turns an interviewed persona into gift recommendations and offers a
// model-free way to pick the next interview question.
package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/Jinny/internal/genai"
	"github.com/BTreeMap/Jinny/internal/interview"
	"github.com/BTreeMap/Jinny/internal/models"
	"github.com/BTreeMap/Jinny/internal/store"
)

// Synthesizer produces gift recommendations for a persona.
type Synthesizer struct {
	store    store.Store
	profiles *interview.ProfileBuilder
	model    genai.ClientInterface
	retry    genai.RetryPolicy
}

// NewSynthesizer creates a Synthesizer. model may be nil, in which case Synthesize fails.
func NewSynthesizer(s store.Store, model genai.ClientInterface, opts ...interview.Option) *Synthesizer {
	cfg := interview.ApplyOptions(opts)
	return &Synthesizer{
		store:    s,
		profiles: interview.NewProfileBuilder(s, s),
		model:    model,
		retry:    cfg.Retry,
	}
}

// Synthesize rebuilds the profile, asks the model for recommendations and summarises the result.
// Nothing is persisted.
func (s *Synthesizer) Synthesize(ctx context.Context, req models.RecommendationRequest) (models.RecommendationResponse, error) {
	const op = "RecommendationSynthesizer.Synthesize"
	profile, err := s.profiles.Build(ctx, req.PersonaID)
	if err != nil {
		return models.RecommendationResponse{}, err
	}
	turns, err := s.store.LoadTurns(ctx, req.PersonaID)
	if err != nil {
		return models.RecommendationResponse{}, models.StorageFailed(op, err)
	}
	if s.model == nil {
		return models.RecommendationResponse{}, models.GenerationFailed(op, interview.ErrNoModel)
	}

	msgs := []genai.Message{{Role: genai.RoleSystem, Content: recommendationSystemPrompt}}
	if len(turns) > 0 {
		msgs = append(msgs, interview.ReplayTurns(turns)...)
		msgs = append(msgs, genai.Message{Role: genai.RoleUser, Content: conversationPrompt(profile)})
	} else {
		msgs = append(msgs, genai.Message{Role: genai.RoleUser, Content: standalonePrompt(profile)})
	}
	slog.Debug(op+": invoking model", "personaID", req.PersonaID, "turns", len(turns), "insights", len(profile.Insights))

	var recs []models.GiftRecommendation
	err = s.retry.Generate(ctx, s.model, op, msgs, func(raw string) error {
		parsed, err := parseRecommendations(raw)
		if err != nil {
			return err
		}
		recs = parsed
		return nil
	})
	if err != nil {
		slog.Error(op+": synthesis failed", "personaID", req.PersonaID, "error", err)
		return models.RecommendationResponse{}, models.GenerationFailed(op, err)
	}

	limit := req.MaxRecommendations
	if limit <= 0 {
		limit = models.DefaultMaxRecommendations
	}
	if len(recs) > limit {
		recs = recs[:limit]
	}
	if !req.IncludeReasoning {
		for i := range recs {
			recs[i].Reasoning = ""
		}
	}

	resp := models.RecommendationResponse{
		PersonaID:            req.PersonaID,
		RecipientSummary:     RecipientSummary(profile),
		Recommendations:      recs,
		TotalRecommendations: len(recs),
		ConfidenceLevel:      AggregateConfidence(recs, len(profile.Insights)),
	}
	slog.Info(op+": recommendations ready", "personaID", req.PersonaID, "count", resp.TotalRecommendations, "confidence", resp.ConfidenceLevel)
	return resp, nil
}

// parseRecommendations accepts {"recommendations": [...]}, an object whose only array
// field holds the list under another name, or a bare array. Items without a title or
// with the wrong shape are dropped; scores are clamped to [0, 1].
func parseRecommendations(raw string) ([]models.GiftRecommendation, error) {
	items, err := recommendationItems(raw)
	if err != nil {
		return nil, err
	}

	recs := make([]models.GiftRecommendation, 0, len(items))
	for _, item := range items {
		var r models.GiftRecommendation
		if err := json.Unmarshal(item, &r); err != nil {
			continue
		}
		r.Title = strings.TrimSpace(r.Title)
		if r.Title == "" {
			continue
		}
		r.ConfidenceScore = clamp01(r.ConfidenceScore)
		recs = append(recs, r)
	}
	if len(items) > 0 && len(recs) == 0 {
		return nil, fmt.Errorf("%w: no usable recommendations in %d items", genai.ErrMalformedOutput, len(items))
	}
	return recs, nil
}

func recommendationItems(raw string) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if strings.HasPrefix(strings.TrimSpace(raw), "[") {
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return nil, fmt.Errorf("%w: %v", genai.ErrMalformedOutput, err)
		}
		return items, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", genai.ErrMalformedOutput, err)
	}
	if list, ok := fields["recommendations"]; ok {
		if err := json.Unmarshal(list, &items); err != nil || items == nil {
			return nil, fmt.Errorf("%w: recommendations is not an array", genai.ErrMalformedOutput)
		}
		return items, nil
	}
	var key string
	for k, v := range fields {
		var list []json.RawMessage
		if json.Unmarshal(v, &list) != nil || list == nil {
			continue
		}
		if key != "" {
			return nil, fmt.Errorf("%w: ambiguous arrays %q and %q", genai.ErrMalformedOutput, key, k)
		}
		key, items = k, list
	}
	if key == "" {
		return nil, fmt.Errorf("%w: missing recommendations array", genai.ErrMalformedOutput)
	}
	slog.Debug("Synthesizer.parseRecommendations: using alternate array key", "key", key)
	return items, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
