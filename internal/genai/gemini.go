package genai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gemini "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient calls Google Gemini through generative-ai-go.
type GeminiClient struct {
	client      *gemini.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewGeminiClient creates a Gemini client. An API key is required.
func NewGeminiClient(ctx context.Context, opts ...Option) (*GeminiClient, error) {
	cfg := applyOpts(opts)
	slog.Debug("genai.NewGeminiClient: creating Gemini client", "apiKey_set", cfg.APIKey != "", "model", cfg.Model)
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrNoAPIKey)
	}
	client, err := gemini.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiClient{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxCompletionTokens,
	}, nil
}

// Close releases the underlying connection.
func (g *GeminiClient) Close() error {
	return g.client.Close()
}

// GenerateJSON replays the messages as a chat session and returns the JSON reply.
func (g *GeminiClient) GenerateJSON(ctx context.Context, messages []Message) (string, error) {
	system, history, last := toGeminiContents(messages)

	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(float32(g.temperature))
	if g.maxTokens > 0 {
		model.SetMaxOutputTokens(int32(g.maxTokens))
	}
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = system

	cs := model.StartChat()
	cs.History = history

	start := time.Now()
	resp, err := cs.SendMessage(ctx, gemini.Text(last))
	if err != nil {
		slog.Error("GeminiClient.GenerateJSON: send failed", "model", g.model, "error", err, "elapsed", time.Since(start))
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		slog.Warn("GeminiClient.GenerateJSON: no candidates returned", "model", g.model)
		return "", ErrNoChoicesReturned
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(gemini.Text); ok {
			b.WriteString(string(t))
		}
	}
	slog.Debug("GeminiClient.GenerateJSON: completion succeeded", "model", g.model, "length", b.Len(), "elapsed", time.Since(start))
	return b.String(), nil
}

// toGeminiContents splits messages into a system instruction, prior history and the final
// user text. Consecutive messages with the same role are merged so roles alternate.
func toGeminiContents(messages []Message) (*gemini.Content, []*gemini.Content, string) {
	var system *gemini.Content
	var history []*gemini.Content
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system == nil {
				system = &gemini.Content{}
			}
			system.Parts = append(system.Parts, gemini.Text(m.Content))
			continue
		}
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		if n := len(history); n > 0 && history[n-1].Role == role {
			history[n-1].Parts = append(history[n-1].Parts, gemini.Text(m.Content))
			continue
		}
		history = append(history, &gemini.Content{Role: role, Parts: []gemini.Part{gemini.Text(m.Content)}})
	}

	// the chat session sends the final user content itself
	last := "Continue."
	if n := len(history); n > 0 && history[n-1].Role == "user" {
		var parts []string
		for _, p := range history[n-1].Parts {
			if t, ok := p.(gemini.Text); ok {
				parts = append(parts, string(t))
			}
		}
		last = strings.Join(parts, "\n\n")
		history = history[:n-1]
	}
	return system, history, last
}
