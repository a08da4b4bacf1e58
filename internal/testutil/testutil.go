// Package testutil provides common test utilities and helpers for Jinny tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/BTreeMap/Jinny/internal/genai"
	"github.com/BTreeMap/Jinny/internal/models"
	"github.com/BTreeMap/Jinny/internal/store"
	"github.com/BTreeMap/Jinny/internal/util"
)

// TB is the subset of testing.TB used by the helpers, so they can be tested themselves.
type TB interface {
	Helper()
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// ErrScriptExhausted is returned by ScriptedModel when no reply is left.
var ErrScriptExhausted = errors.New("scripted model: no reply left")

// ScriptedModel is a genai.ClientInterface that returns queued replies in order and
// records every request.
type ScriptedModel struct {
	mu      sync.Mutex
	replies []scriptedReply
	calls   [][]genai.Message
}

type scriptedReply struct {
	text string
	err  error
}

// NewScriptedModel queues the given replies.
func NewScriptedModel(replies ...string) *ScriptedModel {
	m := &ScriptedModel{}
	for _, r := range replies {
		m.Reply(r)
	}
	return m
}

// Reply queues a successful reply.
func (m *ScriptedModel) Reply(text string) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, scriptedReply{text: text})
	return m
}

// Fail queues a failed call.
func (m *ScriptedModel) Fail(err error) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, scriptedReply{err: err})
	return m
}

// GenerateJSON pops the next queued reply.
func (m *ScriptedModel) GenerateJSON(ctx context.Context, messages []genai.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, append([]genai.Message(nil), messages...))
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(m.replies) == 0 {
		return "", ErrScriptExhausted
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	return r.text, r.err
}

// Calls returns the recorded requests.
func (m *ScriptedModel) Calls() [][]genai.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]genai.Message(nil), m.calls...)
}

// LastCall returns the most recent request, or nil.
func (m *ScriptedModel) LastCall() []genai.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1]
}

// QuestionBatchJSON renders a question-batch reply with n questions whose text starts
// with prefix. Each question offers three options plus "None of the above".
func QuestionBatchJSON(prefix string, n int) string {
	type item struct {
		Question string   `json:"question"`
		Choices  []string `json:"choices"`
	}
	batch := struct {
		Questions        []item `json:"questions"`
		DetectiveComment string `json:"detective_comment"`
	}{DetectiveComment: "Broad strokes first."}
	batch.Questions = []item{}
	for i := 1; i <= n; i++ {
		batch.Questions = append(batch.Questions, item{
			Question: fmt.Sprintf("%s question %d?", prefix, i),
			Choices:  []string{fmt.Sprintf("A%d", i), fmt.Sprintf("B%d", i), fmt.Sprintf("C%d", i), "None of the above"},
		})
	}
	raw, _ := json.Marshal(batch)
	return string(raw)
}

// RecommendationsJSON renders a recommendation reply with one gift per score.
func RecommendationsJSON(scores ...float64) string {
	recs := make([]models.GiftRecommendation, len(scores))
	for i, s := range scores {
		recs[i] = models.GiftRecommendation{
			Title:           fmt.Sprintf("Gift %d", i+1),
			Description:     fmt.Sprintf("Description %d", i+1),
			PriceRange:      "€20-€50",
			Reasoning:       fmt.Sprintf("Reason %d", i+1),
			ConfidenceScore: s,
			Category:        "experiences",
		}
	}
	raw, _ := json.Marshal(map[string]any{"recommendations": recs})
	return string(raw)
}

// SamplePersonaRequest is a 25-year-old male friend with a birthday coming up.
func SamplePersonaRequest() models.PersonaRequest {
	return models.PersonaRequest{
		Age:          25,
		Gender:       models.GenderMale,
		Occasion:     models.OccasionBirthday,
		Relationship: models.RelationshipFriend,
	}
}

// SeedPersona stores a persona built from req and returns it.
func SeedPersona(t TB, s store.PersonaStore, req models.PersonaRequest) models.Persona {
	t.Helper()
	p := models.Persona{
		ID:           util.NewID(),
		Age:          req.Age,
		Gender:       req.Gender,
		Occasion:     req.Occasion,
		Relationship: req.Relationship,
		Budget:       req.Budget,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.CreatePersona(context.Background(), p); err != nil {
		t.Fatalf("failed to seed persona: %v", err)
	}
	return p
}

// NewMemoryStore returns an empty in-memory store or fails the test.
func NewMemoryStore(t TB) *store.InMemoryStore {
	t.Helper()
	s, err := store.NewInMemoryStore()
	if err != nil {
		t.Fatalf("failed to create in-memory store: %v", err)
	}
	return s
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t TB, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes JSON response and validates the status field.
func AssertJSONResponse(t TB, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
		return nil
	}
	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Errorf("response missing or invalid 'status' field")
	}
	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t TB, method, url string, body interface{}) *http.Request {
	t.Helper()
	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		if raw, ok := body.(string); ok {
			reqBody = bytes.NewBufferString(raw)
		} else {
			reqBody = bytes.NewBuffer(MustMarshalJSON(t, body))
		}
	}
	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
		return nil
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t TB, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t TB, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
