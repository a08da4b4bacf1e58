package genai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
)

// compatChat is the subset of the go-openai client used here.
type compatChat interface {
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

// CompatClient talks to any OpenAI-compatible endpoint (DeepSeek, Hugging Face router, Ollama).
type CompatClient struct {
	chat        compatChat
	model       string
	temperature float64
	maxTokens   int
}

// NewCompatClient creates a client for an OpenAI-compatible endpoint. A base URL and a model are required;
// the API key may be empty for local servers.
func NewCompatClient(opts ...Option) (*CompatClient, error) {
	cfg := applyOpts(opts)
	slog.Debug("genai.NewCompatClient: creating compatible client", "apiKey_set", cfg.APIKey != "", "baseURL", cfg.BaseURL, "model", cfg.Model)
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("compat: base URL not set")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("compat: model not set")
	}
	config := goopenai.DefaultConfig(cfg.APIKey)
	config.BaseURL = cfg.BaseURL
	return &CompatClient{
		chat:        goopenai.NewClientWithConfig(config),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxCompletionTokens,
	}, nil
}

func toCompatMessages(messages []Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		role := goopenai.ChatMessageRoleUser
		switch m.Role {
		case RoleSystem:
			role = goopenai.ChatMessageRoleSystem
		case RoleAssistant:
			role = goopenai.ChatMessageRoleAssistant
		}
		out[i] = goopenai.ChatCompletionMessage{Role: role, Content: m.Content}
	}
	return out
}

// GenerateJSON requests a JSON object reply.
func (c *CompatClient) GenerateJSON(ctx context.Context, messages []Message) (string, error) {
	req := goopenai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toCompatMessages(messages),
		Temperature: float32(c.temperature),
		MaxTokens:   c.maxTokens,
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}
	start := time.Now()
	resp, err := c.chat.CreateChatCompletion(ctx, req)
	if err != nil {
		slog.Error("CompatClient.GenerateJSON: completion failed", "model", c.model, "error", err, "elapsed", time.Since(start))
		return "", err
	}
	if len(resp.Choices) == 0 {
		slog.Warn("CompatClient.GenerateJSON: no choices returned", "model", c.model)
		return "", ErrNoChoicesReturned
	}
	content := resp.Choices[0].Message.Content
	slog.Debug("CompatClient.GenerateJSON: completion succeeded", "model", c.model, "length", len(content), "elapsed", time.Since(start))
	return content, nil
}
