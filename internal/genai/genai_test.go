package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	gemini "github.com/google/generative-ai-go/genai"
	"github.com/openai/openai-go"
	goopenai "github.com/sashabaranov/go-openai"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp   openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.params = params
	return m.resp, m.err
}

func completion(content string) openai.ChatCompletion {
	return openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestGenerateJSON_Success(t *testing.T) {
	mock := &mockChatService{resp: completion(`{"ok": true}`)}
	client := &Client{chat: mock, model: "test-model", temperature: 0.2, maxCompletionTokens: 100}
	out, err := client.GenerateJSON(context.Background(), []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "hi"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != `{"ok": true}` {
		t.Errorf("unexpected output %q", out)
	}
	if len(mock.params.Messages) != 2 {
		t.Errorf("expected 2 messages, got %d", len(mock.params.Messages))
	}
	if mock.params.ResponseFormat.OfJSONObject == nil {
		t.Error("expected JSON object response format")
	}
	if string(mock.params.Model) != "test-model" {
		t.Errorf("model = %q", mock.params.Model)
	}
}

func TestGenerateJSON_ServiceError(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("service failure")}}
	_, err := client.GenerateJSON(context.Background(), []Message{{Role: RoleUser, Content: "x"}})
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestGenerateJSON_NoChoices(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: openai.ChatCompletion{}}}
	_, err := client.GenerateJSON(context.Background(), []Message{{Role: RoleUser, Content: "x"}})
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected no choices returned error, got %v", err)
	}
}

func TestToOpenAIMessages_Roles(t *testing.T) {
	msgs := toOpenAIMessages([]Message{
		{Role: RoleSystem, Content: "s"},
		{Role: RoleAssistant, Content: "a"},
		{Role: RoleUser, Content: "u"},
	})
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].OfSystem == nil || msgs[1].OfAssistant == nil || msgs[2].OfUser == nil {
		t.Errorf("roles not mapped: %+v", msgs)
	}
}

func TestNewClient_NoKey(t *testing.T) {
	_, err := NewClient()
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-test"))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli.model != "gpt-test" || cli.temperature != DefaultTemperature {
		t.Errorf("unexpected client config: model=%q temperature=%v", cli.model, cli.temperature)
	}
}

func TestNew_Providers(t *testing.T) {
	if _, err := New("mystery"); err == nil {
		t.Error("expected error for unknown provider")
	}
	if c, err := New(ProviderGemini); !errors.Is(err, ErrNoAPIKey) || c != nil {
		t.Errorf("gemini without key: got %v, %v", c, err)
	}
	if c, err := New(ProviderOpenAI); err == nil || c != nil {
		t.Errorf("openai without key must return a nil interface, got %#v", c)
	}
	if _, err := New(ProviderCompat, WithModel("deepseek-chat")); err == nil {
		t.Error("compat without base URL should fail")
	}
	c, err := New(ProviderCompat, WithBaseURL("http://localhost:11434/v1"), WithModel("llama3"))
	if err != nil {
		t.Fatalf("compat: %v", err)
	}
	if _, ok := c.(*CompatClient); !ok {
		t.Errorf("New(compat) = %T", c)
	}
}

type mockCompatChat struct {
	req  goopenai.ChatCompletionRequest
	resp goopenai.ChatCompletionResponse
	err  error
}

func (m *mockCompatChat) CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error) {
	m.req = req
	return m.resp, m.err
}

func TestCompatClient_GenerateJSON(t *testing.T) {
	mock := &mockCompatChat{resp: goopenai.ChatCompletionResponse{
		Choices: []goopenai.ChatCompletionChoice{{Message: goopenai.ChatCompletionMessage{Content: `{"a":1}`}}},
	}}
	c := &CompatClient{chat: mock, model: "deepseek-chat", temperature: 0.5}
	out, err := c.GenerateJSON(context.Background(), []Message{
		{Role: RoleSystem, Content: "s"},
		{Role: RoleAssistant, Content: "a"},
		{Role: RoleUser, Content: "u"},
	})
	if err != nil {
		t.Fatalf("GenerateJSON: %v", err)
	}
	if out != `{"a":1}` {
		t.Errorf("output = %q", out)
	}
	roles := []string{mock.req.Messages[0].Role, mock.req.Messages[1].Role, mock.req.Messages[2].Role}
	if strings.Join(roles, ",") != "system,assistant,user" {
		t.Errorf("roles = %v", roles)
	}
	if mock.req.ResponseFormat == nil || mock.req.ResponseFormat.Type != goopenai.ChatCompletionResponseFormatTypeJSONObject {
		t.Error("expected json_object response format")
	}

	mock.resp = goopenai.ChatCompletionResponse{}
	if _, err := c.GenerateJSON(context.Background(), nil); !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected ErrNoChoicesReturned, got %v", err)
	}
}

func partText(p gemini.Part) string {
	if t, ok := p.(gemini.Text); ok {
		return string(t)
	}
	return ""
}

func TestToGeminiContents(t *testing.T) {
	system, history, last := toGeminiContents([]Message{
		{Role: RoleSystem, Content: "rules"},
		{Role: RoleSystem, Content: "profile"},
		{Role: RoleAssistant, Content: "q1"},
		{Role: RoleUser, Content: "a1"},
		{Role: RoleAssistant, Content: "q2"},
		{Role: RoleAssistant, Content: "q3"},
		{Role: RoleUser, Content: "final"},
	})
	if system == nil || len(system.Parts) != 2 || partText(system.Parts[1]) != "profile" {
		t.Fatalf("system instruction = %+v", system)
	}
	if last != "final" {
		t.Errorf("last = %q", last)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 merged history contents, got %d", len(history))
	}
	if history[0].Role != "model" || history[1].Role != "user" || history[2].Role != "model" {
		t.Errorf("roles = %s %s %s", history[0].Role, history[1].Role, history[2].Role)
	}
	if len(history[2].Parts) != 2 {
		t.Errorf("consecutive model messages not merged: %d parts", len(history[2].Parts))
	}
}

func TestToGeminiContents_NoTrailingUser(t *testing.T) {
	_, history, last := toGeminiContents([]Message{{Role: RoleAssistant, Content: "q"}})
	if last != "Continue." || len(history) != 1 {
		t.Errorf("last=%q history=%d", last, len(history))
	}
}

// scriptedClient returns canned replies in order.
type scriptedClient struct {
	replies []string
	errs    []error
	calls   int
	delay   time.Duration
}

func (s *scriptedClient) GenerateJSON(ctx context.Context, messages []Message) (string, error) {
	i := s.calls
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "", errors.New("script exhausted")
}

func decodeOK(raw string) error {
	if raw != `{"ok":true}` {
		return fmt.Errorf("%w: %q", ErrMalformedOutput, raw)
	}
	return nil
}

func TestRetryPolicy_RetriesMalformed(t *testing.T) {
	client := &scriptedClient{replies: []string{"nonsense", "```json\n{\"ok\":true}\n```"}}
	err := RetryPolicy{Attempts: 3}.Generate(context.Background(), client, "test", nil, decodeOK)
	if err != nil {
		t.Fatalf("expected success on second attempt, got %v", err)
	}
	if client.calls != 2 {
		t.Errorf("calls = %d, want 2", client.calls)
	}
}

func TestRetryPolicy_GivesUp(t *testing.T) {
	client := &scriptedClient{errs: []error{errors.New("boom"), errors.New("boom"), errors.New("boom")}}
	err := RetryPolicy{Attempts: 3}.Generate(context.Background(), client, "test", nil, decodeOK)
	if err == nil || !strings.Contains(err.Error(), "3 attempts") {
		t.Fatalf("expected give-up error, got %v", err)
	}
	if client.calls != 3 {
		t.Errorf("calls = %d, want 3", client.calls)
	}
}

func TestRetryPolicy_Timeout(t *testing.T) {
	client := &scriptedClient{delay: time.Second, replies: []string{`{"ok":true}`, `{"ok":true}`}}
	err := RetryPolicy{Attempts: 2, Timeout: 10 * time.Millisecond}.Generate(context.Background(), client, "test", nil, decodeOK)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestRetryPolicy_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := &scriptedClient{replies: []string{`{"ok":true}`}}
	err := DefaultRetryPolicy.Generate(ctx, client, "test", nil, decodeOK)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if client.calls != 0 {
		t.Errorf("model called %d times after cancellation", client.calls)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`  {"a":1} `, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n[1,2]\n```", `[1,2]`},
		{"```{\"a\":1}```", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := ExtractJSON(tt.in); got != tt.want {
			t.Errorf("ExtractJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
