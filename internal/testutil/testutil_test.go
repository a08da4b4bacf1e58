package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BTreeMap/Jinny/internal/genai"
)

// mockTestingT implements TB for testing our test helpers.
type mockTestingT struct {
	failed   bool
	errorMsg string
	helper   bool
}

func (m *mockTestingT) Helper() {
	m.helper = true
}

func (m *mockTestingT) Errorf(format string, args ...interface{}) {
	m.failed = true
	m.errorMsg = fmt.Sprintf(format, args...)
}

func (m *mockTestingT) Fatalf(format string, args ...interface{}) {
	m.failed = true
	m.errorMsg = fmt.Sprintf(format, args...)
}

func TestAssertHTTPStatus(t *testing.T) {
	tests := []struct {
		name       string
		expected   int
		actual     int
		shouldFail bool
	}{
		{name: "matching status codes", expected: 200, actual: 200, shouldFail: false},
		{name: "different status codes", expected: 200, actual: 404, shouldFail: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockT := &mockTestingT{}
			AssertHTTPStatus(mockT, tt.expected, tt.actual, "test context")
			if tt.shouldFail != mockT.failed {
				t.Errorf("failed = %v, want %v", mockT.failed, tt.shouldFail)
			}
			if !mockT.helper {
				t.Error("expected Helper() to be called")
			}
		})
	}
}

func TestAssertJSONResponse(t *testing.T) {
	rr := httptest.NewRecorder()
	rr.Body.WriteString(`{"status":"ok","result":{"n":1}}`)
	mockT := &mockTestingT{}
	resp := AssertJSONResponse(mockT, rr, "ok")
	if mockT.failed {
		t.Fatalf("unexpected failure: %s", mockT.errorMsg)
	}
	if resp["result"] == nil {
		t.Error("expected result field")
	}

	rr = httptest.NewRecorder()
	rr.Body.WriteString(`{"status":"error"}`)
	mockT = &mockTestingT{}
	AssertJSONResponse(mockT, rr, "ok")
	if !mockT.failed {
		t.Error("expected mismatch to fail")
	}
}

func TestCreateHTTPRequest(t *testing.T) {
	req := CreateHTTPRequest(t, http.MethodPost, "/personas", map[string]int{"age": 30})
	if req.Header.Get("Content-Type") != "application/json" {
		t.Errorf("missing content type")
	}
	var body map[string]int
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body["age"] != 30 {
		t.Errorf("body = %v, err = %v", body, err)
	}

	raw := CreateHTTPRequest(t, http.MethodPost, "/answers", "{not json")
	data, err := io.ReadAll(raw.Body)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "{not json" {
		t.Errorf("raw string body = %q", data)
	}
}

func TestScriptedModel(t *testing.T) {
	m := NewScriptedModel(`{"a":1}`).Fail(errors.New("down"))
	msgs := []genai.Message{{Role: genai.RoleUser, Content: "hi"}}

	out, err := m.GenerateJSON(context.Background(), msgs)
	if err != nil || out != `{"a":1}` {
		t.Fatalf("first call = %q, %v", out, err)
	}
	if _, err := m.GenerateJSON(context.Background(), msgs); err == nil || err.Error() != "down" {
		t.Fatalf("second call err = %v", err)
	}
	if _, err := m.GenerateJSON(context.Background(), msgs); !errors.Is(err, ErrScriptExhausted) {
		t.Fatalf("third call err = %v", err)
	}
	if len(m.Calls()) != 3 || m.LastCall()[0].Content != "hi" {
		t.Errorf("calls not recorded: %d", len(m.Calls()))
	}
}

func TestQuestionBatchJSON(t *testing.T) {
	var batch struct {
		Questions []struct {
			Question string   `json:"question"`
			Choices  []string `json:"choices"`
		} `json:"questions"`
	}
	MustUnmarshalJSON(t, []byte(QuestionBatchJSON("Initial", 5)), &batch)
	if len(batch.Questions) != 5 {
		t.Fatalf("expected 5 questions, got %d", len(batch.Questions))
	}
	if batch.Questions[0].Question != "Initial question 1?" || batch.Questions[4].Choices[3] != "None of the above" {
		t.Errorf("unexpected batch: %+v", batch.Questions)
	}
}

func TestSeedPersona(t *testing.T) {
	s := NewMemoryStore(t)
	p := SeedPersona(t, s, SamplePersonaRequest())
	got, err := s.GetPersona(context.Background(), p.ID)
	if err != nil || got == nil || got.Age != 25 {
		t.Fatalf("seeded persona = %+v, %v", got, err)
	}
}
