package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BTreeMap/Jinny/internal/genai"
	"github.com/BTreeMap/Jinny/internal/models"
	"github.com/BTreeMap/Jinny/internal/store"
	"github.com/BTreeMap/Jinny/internal/testutil"
	"github.com/BTreeMap/Jinny/internal/util"
)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func newTestServer(t *testing.T, model genai.ClientInterface, opts ...Option) (*Server, *store.InMemoryStore) {
	t.Helper()
	st := testutil.NewMemoryStore(t)
	opts = append([]Option{WithRetryPolicy(genai.RetryPolicy{Attempts: 1})}, opts...)
	srv, err := NewServer(st, model, opts...)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv, st
}

func do(t *testing.T, h http.Handler, method, url string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, testutil.CreateHTTPRequest(t, method, url, body))
	var env envelope
	if rr.Body.Len() > 0 && rr.Header().Get("Content-Type") == "application/json" {
		testutil.MustUnmarshalJSON(t, rr.Body.Bytes(), &env)
	}
	return rr, env
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rr, env := do(t, srv.Handler(), http.MethodGet, "/health", nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "health")
	if env.Status != "ok" {
		t.Errorf("expected ok status, got %q", env.Status)
	}
}

func TestCreateAndGetPersona(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.Handler()

	rr, env := do(t, h, http.MethodPost, "/personas", testutil.SamplePersonaRequest())
	testutil.AssertHTTPStatus(t, http.StatusCreated, rr.Code, "create persona")
	var p models.Persona
	testutil.MustUnmarshalJSON(t, env.Result, &p)
	if p.ID == "" || p.Age != 25 {
		t.Fatalf("unexpected persona: %+v", p)
	}

	rr, env = do(t, h, http.MethodGet, "/personas/"+p.ID, nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "get persona")
	var got models.Persona
	testutil.MustUnmarshalJSON(t, env.Result, &got)
	if got.ID != p.ID || got.Occasion != models.OccasionBirthday {
		t.Errorf("get persona returned %+v", got)
	}

	rr, env = do(t, h, http.MethodGet, "/personas/missing", nil)
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "missing persona")
	if env.Status != "error" {
		t.Errorf("expected error envelope, got %q", env.Status)
	}
}

func TestCreatePersona_BadInput(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.Handler()

	rr, _ := do(t, h, http.MethodPost, "/personas", "{not json")
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "bad json")

	req := testutil.SamplePersonaRequest()
	req.Occasion = "funeral"
	rr, env := do(t, h, http.MethodPost, "/personas", req)
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "bad occasion")
	if env.Message == "" {
		t.Error("expected validation message")
	}

	rr, _ = do(t, h, http.MethodGet, "/personas", nil)
	testutil.AssertHTTPStatus(t, http.StatusMethodNotAllowed, rr.Code, "wrong method")
}

func TestNextQuestions_Model(t *testing.T) {
	model := testutil.NewScriptedModel(testutil.QuestionBatchJSON("Initial", 5))
	srv, st := newTestServer(t, model)
	p := testutil.SeedPersona(t, st, testutil.SamplePersonaRequest())

	rr, env := do(t, srv.Handler(), http.MethodGet, "/personas/"+p.ID+"/questions/next", nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "next questions")
	var qs []models.GeneratedQuestion
	testutil.MustUnmarshalJSON(t, env.Result, &qs)
	if len(qs) != 5 {
		t.Fatalf("expected 5 questions, got %d", len(qs))
	}
	for _, q := range qs {
		if len(q.Choices) != 4 {
			t.Errorf("question %q has %d choices", q.QuestionText, len(q.Choices))
		}
	}

	rr, env = do(t, srv.Handler(), http.MethodGet, "/personas/"+p.ID+"/questions", nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "list questions")
	var listed []models.InterviewQuestion
	testutil.MustUnmarshalJSON(t, env.Result, &listed)
	if len(listed) != 5 || listed[0].ID != qs[0].ID {
		t.Errorf("listed questions do not match generated ones: %d", len(listed))
	}
}

func TestNextQuestions_Failures(t *testing.T) {
	model := testutil.NewScriptedModel().Fail(errors.New("boom"))
	srv, st := newTestServer(t, model)
	p := testutil.SeedPersona(t, st, testutil.SamplePersonaRequest())
	h := srv.Handler()

	rr, _ := do(t, h, http.MethodGet, "/personas/"+p.ID+"/questions/next", nil)
	testutil.AssertHTTPStatus(t, http.StatusBadGateway, rr.Code, "model failure")

	rr, _ = do(t, h, http.MethodGet, "/personas/nobody/questions/next", nil)
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "unknown persona")

	rr, _ = do(t, h, http.MethodGet, "/personas/"+p.ID+"/questions/next?strategy=dice", nil)
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "bad strategy")

	rr, _ = do(t, h, http.MethodGet, "/personas/nobody/questions", nil)
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "list for unknown persona")
}

func TestNextQuestions_NoModel(t *testing.T) {
	srv, st := newTestServer(t, nil)
	p := testutil.SeedPersona(t, st, testutil.SamplePersonaRequest())
	rr, _ := do(t, srv.Handler(), http.MethodGet, "/personas/"+p.ID+"/questions/next", nil)
	testutil.AssertHTTPStatus(t, http.StatusBadGateway, rr.Code, "no model without fallback")
}

func TestNextQuestions_Rules(t *testing.T) {
	srv, st := newTestServer(t, nil, WithRulesFallback(true))
	p := testutil.SeedPersona(t, st, testutil.SamplePersonaRequest())
	h := srv.Handler()

	rr, env := do(t, h, http.MethodGet, "/personas/"+p.ID+"/questions/next", nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "rules fallback")
	var qs []models.GeneratedQuestion
	testutil.MustUnmarshalJSON(t, env.Result, &qs)
	if len(qs) != 1 || len(qs[0].Choices) != 3 {
		t.Fatalf("expected one 3-choice question, got %+v", qs)
	}

	rr, env = do(t, h, http.MethodGet, "/personas/"+p.ID+"/questions/next?strategy=rules", nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "explicit rules")
	var next []models.GeneratedQuestion
	testutil.MustUnmarshalJSON(t, env.Result, &next)
	if len(next) != 1 || next[0].QuestionText == qs[0].QuestionText {
		t.Errorf("rules path repeated a question: %+v", next)
	}
}

func TestSubmitAnswers(t *testing.T) {
	srv, st := newTestServer(t, testutil.NewScriptedModel(testutil.QuestionBatchJSON("Initial", 5)))
	p := testutil.SeedPersona(t, st, testutil.SamplePersonaRequest())
	h := srv.Handler()

	_, env := do(t, h, http.MethodGet, "/personas/"+p.ID+"/questions/next", nil)
	var qs []models.GeneratedQuestion
	testutil.MustUnmarshalJSON(t, env.Result, &qs)

	body := models.SubmitAnswersRequest{Answers: []models.AnswerItem{
		{QuestionID: qs[0].ID, ChosenText: "a1"},
		{QuestionID: "missing-1", ChosenText: "x"},
		{QuestionID: qs[1].ID, ChosenText: "B2"},
		{QuestionID: "missing-2", ChosenText: "y"},
		{QuestionID: qs[2].ID, ChosenText: "None of the above"},
	}}
	rr, env := do(t, h, http.MethodPost, "/personas/"+p.ID+"/answers", body)
	testutil.AssertHTTPStatus(t, http.StatusCreated, rr.Code, "submit answers")
	var resp models.SubmitAnswersResponse
	testutil.MustUnmarshalJSON(t, env.Result, &resp)
	if resp.SubmittedCount != 3 || len(resp.Answers) != 3 {
		t.Fatalf("expected 3 submitted answers, got %+v", resp)
	}
	if resp.Answers[0].SelectedChoice != "A1" {
		t.Errorf("expected canonical choice A1, got %q", resp.Answers[0].SelectedChoice)
	}

	rr, _ = do(t, h, http.MethodPost, "/answers", models.SubmitAnswersRequest{Answers: []models.AnswerItem{{QuestionID: qs[3].ID, ChosenText: "C4"}}})
	testutil.AssertHTTPStatus(t, http.StatusCreated, rr.Code, "global answers")

	rr, _ = do(t, h, http.MethodPost, "/answers", "{")
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "bad json")

	rr, env = do(t, h, http.MethodPost, "/answers", map[string]string{"foo": "bar"})
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "missing answers array")
	if env.Message != models.ErrMissingAnswers.Error() {
		t.Errorf("unexpected message %q", env.Message)
	}

	rr, _ = do(t, h, http.MethodPost, "/personas/nobody/answers", body)
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "unknown persona")
}

func TestSubmitSingleAnswer(t *testing.T) {
	srv, st := newTestServer(t, nil, WithRulesFallback(true))
	p := testutil.SeedPersona(t, st, testutil.SamplePersonaRequest())
	h := srv.Handler()

	_, env := do(t, h, http.MethodGet, "/personas/"+p.ID+"/questions/next", nil)
	var qs []models.GeneratedQuestion
	testutil.MustUnmarshalJSON(t, env.Result, &qs)

	url := fmt.Sprintf("/questions/%s/answer", qs[0].ID)
	rr, env := do(t, h, http.MethodPost, url, map[string]string{"answer_choice": qs[0].Choices[0]})
	testutil.AssertHTTPStatus(t, http.StatusCreated, rr.Code, "single answer")
	var rec models.AnswerRecord
	testutil.MustUnmarshalJSON(t, env.Result, &rec)
	if rec.SelectedChoice != qs[0].Choices[0] {
		t.Errorf("expected %q, got %q", qs[0].Choices[0], rec.SelectedChoice)
	}

	rr, _ = do(t, h, http.MethodPost, url, map[string]string{"answer_choice": ""})
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "empty choice")

	rr, _ = do(t, h, http.MethodPost, "/questions/missing/answer", map[string]string{"answer_choice": "Yes"})
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "unknown question")
}

func TestMalformedPathIDs(t *testing.T) {
	model := testutil.NewScriptedModel(testutil.QuestionBatchJSON("Initial", 5))
	srv, _ := newTestServer(t, model)
	h := srv.Handler()

	routes := []struct{ method, path string }{
		{http.MethodGet, "/personas/%s"},
		{http.MethodGet, "/personas/%s/questions/next"},
		{http.MethodGet, "/personas/%s/questions"},
		{http.MethodPost, "/personas/%s/recommendations"},
		{http.MethodGet, "/personas/%s/profile"},
		{http.MethodDelete, "/personas/%s/conversation"},
	}
	for _, route := range routes {
		rr, env := do(t, h, route.method, fmt.Sprintf(route.path, "not-an-id"), nil)
		testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, route.path+" malformed id")
		if !strings.Contains(env.Message, "malformed id") {
			t.Errorf("%s: message = %q", route.path, env.Message)
		}

		rr, env = do(t, h, route.method, fmt.Sprintf(route.path, util.NewID()), nil)
		testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, route.path+" unknown id")
		if strings.Contains(env.Message, "malformed id") {
			t.Errorf("%s: well-formed id reported as malformed: %q", route.path, env.Message)
		}
	}

	body := map[string]interface{}{"answers": []models.AnswerItem{}}
	rr, _ := do(t, h, http.MethodPost, "/personas/not-an-id/answers", body)
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "answers for malformed persona id")
	rr, _ = do(t, h, http.MethodPost, "/questions/"+util.NewID()+"/answer", map[string]string{"answer_choice": "Yes"})
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "unknown well-formed question id")

	if n := len(model.Calls()); n != 0 {
		t.Errorf("model called %d times for unknown personas", n)
	}
}

func TestRecommendations(t *testing.T) {
	model := testutil.NewScriptedModel(
		testutil.RecommendationsJSON(0.9, 0.8, 0.7, 0.6, 0.5),
		testutil.RecommendationsJSON(0.9, 0.8, 0.7),
	)
	srv, st := newTestServer(t, model)
	p := testutil.SeedPersona(t, st, testutil.SamplePersonaRequest())
	h := srv.Handler()

	rr, env := do(t, h, http.MethodPost, "/personas/"+p.ID+"/recommendations", nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "recommendations")
	var resp models.RecommendationResponse
	testutil.MustUnmarshalJSON(t, env.Result, &resp)
	if resp.TotalRecommendations != 5 || resp.ConfidenceLevel != models.ConfidenceLow {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Recommendations[0].Reasoning == "" {
		t.Error("reasoning is included by default")
	}

	rr, env = do(t, h, http.MethodPost, "/personas/"+p.ID+"/recommendations?max_recommendations=2&include_reasoning=false", nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "limited recommendations")
	resp = models.RecommendationResponse{}
	testutil.MustUnmarshalJSON(t, env.Result, &resp)
	if resp.TotalRecommendations != 2 || resp.Recommendations[1].Reasoning != "" {
		t.Errorf("unexpected limited response: %+v", resp)
	}

	rr, _ = do(t, h, http.MethodPost, "/personas/"+p.ID+"/recommendations?max_recommendations=zero", nil)
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "bad max")

	rr, _ = do(t, h, http.MethodPost, "/personas/"+p.ID+"/recommendations?include_reasoning=maybe", nil)
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "bad include_reasoning")

	rr, _ = do(t, h, http.MethodPost, "/personas/nobody/recommendations", nil)
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "unknown persona")

	rr, _ = do(t, h, http.MethodPost, "/personas/"+p.ID+"/recommendations", nil)
	testutil.AssertHTTPStatus(t, http.StatusBadGateway, rr.Code, "script exhausted")
}

func TestProfileAndReset(t *testing.T) {
	srv, st := newTestServer(t, testutil.NewScriptedModel(testutil.QuestionBatchJSON("Initial", 5)))
	p := testutil.SeedPersona(t, st, testutil.SamplePersonaRequest())
	h := srv.Handler()

	rr, env := do(t, h, http.MethodGet, "/personas/"+p.ID+"/profile", nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "profile")
	var sum models.ProfileSummary
	testutil.MustUnmarshalJSON(t, env.Result, &sum)
	if sum.ReadyForRecommendations || sum.Profile.Age != 25 {
		t.Errorf("unexpected summary: %+v", sum)
	}

	do(t, h, http.MethodGet, "/personas/"+p.ID+"/questions/next", nil)
	rr, _ = do(t, h, http.MethodDelete, "/personas/"+p.ID+"/conversation", nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "reset")
	turns, err := st.LoadTurns(t.Context(), p.ID)
	if err != nil || len(turns) != 0 {
		t.Errorf("expected no turns after reset, got %d (%v)", len(turns), err)
	}

	rr, _ = do(t, h, http.MethodDelete, "/personas/nobody/conversation", nil)
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "reset unknown persona")
	rr, _ = do(t, h, http.MethodGet, "/personas/nobody/profile", nil)
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "profile unknown persona")
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{models.NotFound("op", nil), http.StatusNotFound},
		{models.Invalid("op", errors.New("bad")), http.StatusBadRequest},
		{models.GenerationFailed("op", errors.New("model")), http.StatusBadGateway},
		{models.StorageFailed("op", errors.New("disk")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := statusForError(c.err); got != c.want {
			t.Errorf("statusForError(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestWriteJSONResponse_MarshalFailure(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSONResponse(rr, http.StatusOK, models.Success(make(chan int)))
	testutil.AssertHTTPStatus(t, http.StatusInternalServerError, rr.Code, "unmarshalable")
	testutil.AssertJSONResponse(t, rr, "error")
}
