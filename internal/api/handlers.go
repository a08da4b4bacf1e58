package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/BTreeMap/Jinny/internal/interview"
	"github.com/BTreeMap/Jinny/internal/models"
	"github.com/BTreeMap/Jinny/internal/util"
)

// Query values for ?strategy= on the next-questions endpoint.
const (
	StrategyModel = "model"
	StrategyRules = "rules"
)

// pathID returns the {id} path value. An id NewID could not have produced is answered
// with 404 without touching the store.
func pathID(w http.ResponseWriter, r *http.Request, handler string) (string, bool) {
	id := r.PathValue("id")
	if !util.IsValidID(id) {
		writeError(w, handler, models.NotFound(handler, fmt.Errorf("malformed id %q", id)))
		return "", false
	}
	return id, true
}

func (s *Server) createPersonaHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req models.PersonaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.createPersonaHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	p, err := interview.CreatePersona(r.Context(), s.st, req)
	if err != nil {
		writeError(w, "createPersonaHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.Success(p))
}

func (s *Server) getPersonaHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "getPersonaHandler")
	if !ok {
		return
	}
	p, err := interview.GetPersona(r.Context(), s.st, id)
	if err != nil {
		writeError(w, "getPersonaHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(p))
}

func (s *Server) nextQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	personaID, ok := pathID(w, r, "nextQuestionsHandler")
	if !ok {
		return
	}
	strategy := r.URL.Query().Get("strategy")
	switch strategy {
	case "":
		if !s.hasModel && s.rulesFallback {
			strategy = StrategyRules
		}
	case StrategyModel, StrategyRules:
	default:
		writeJSONResponse(w, http.StatusBadRequest, models.Error("strategy must be \"model\" or \"rules\""))
		return
	}
	slog.Debug("Server.nextQuestionsHandler: selecting questions", "personaID", personaID, "strategy", strategy)

	if strategy == StrategyRules {
		q, err := s.rules.Next(r.Context(), personaID)
		if err != nil {
			writeError(w, "nextQuestionsHandler", err)
			return
		}
		if q == nil {
			writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("No more questions", []models.GeneratedQuestion{}))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success([]models.GeneratedQuestion{*q}))
		return
	}

	qs, err := s.generator.Generate(r.Context(), personaID)
	if err != nil {
		writeError(w, "nextQuestionsHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(qs))
}

func (s *Server) listQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "listQuestionsHandler")
	if !ok {
		return
	}
	qs, err := interview.ListQuestions(r.Context(), s.st, id)
	if err != nil {
		writeError(w, "listQuestionsHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(qs))
}

// submitAnswersHandler serves both the persona-scoped and the global batch route.
func (s *Server) submitAnswersHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req models.SubmitAnswersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.submitAnswersHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Answers == nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(models.ErrMissingAnswers.Error()))
		return
	}
	// POST /answers has no persona in the path
	personaID := r.PathValue("id")
	if personaID != "" && !util.IsValidID(personaID) {
		writeError(w, "submitAnswersHandler", models.NotFound("submitAnswersHandler", fmt.Errorf("malformed id %q", personaID)))
		return
	}
	resp, err := s.ingestor.Submit(r.Context(), personaID, req.Answers)
	if err != nil {
		writeError(w, "submitAnswersHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.Success(resp))
}

func (s *Server) submitAnswerHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	id, ok := pathID(w, r, "submitAnswerHandler")
	if !ok {
		return
	}
	var item models.AnswerItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		slog.Warn("Server.submitAnswerHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	rec, err := s.ingestor.SubmitOne(r.Context(), id, item.ChosenText)
	if err != nil {
		writeError(w, "submitAnswerHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.Success(rec))
}

func (s *Server) recommendationsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "recommendationsHandler")
	if !ok {
		return
	}
	req := models.RecommendationRequest{
		PersonaID:          id,
		MaxRecommendations: models.DefaultMaxRecommendations,
		IncludeReasoning:   true,
	}
	q := r.URL.Query()
	if v := q.Get("max_recommendations"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("max_recommendations must be a positive integer"))
			return
		}
		req.MaxRecommendations = n
	}
	if v := q.Get("include_reasoning"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("include_reasoning must be a boolean"))
			return
		}
		req.IncludeReasoning = b
	}

	resp, err := s.synth.Synthesize(r.Context(), req)
	if err != nil {
		writeError(w, "recommendationsHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(resp))
}

func (s *Server) profileHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "profileHandler")
	if !ok {
		return
	}
	summary, err := s.profiles.Summary(r.Context(), id)
	if err != nil {
		writeError(w, "profileHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(summary))
}

func (s *Server) resetConversationHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "resetConversationHandler")
	if !ok {
		return
	}
	if err := interview.ResetConversation(r.Context(), s.st, id); err != nil {
		writeError(w, "resetConversationHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Conversation cleared", nil))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]any{
		"model_configured": s.hasModel,
		"rules_fallback":   s.rulesFallback,
	}))
}
