// Package genai provides structured model invocation for Jinny.
//
// Three providers are supported behind ClientInterface: OpenAI (openai-go), Google Gemini
// (generative-ai-go) and any OpenAI-compatible endpoint such as DeepSeek or Ollama (go-openai).
// All of them are asked for a single JSON object per call.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// Role tags a message for the model.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one provider-neutral chat message.
type Message struct {
	Role    Role
	Content string
}

// ClientInterface is the model-invocation service used by the interview engine.
type ClientInterface interface {
	// GenerateJSON sends the messages and returns the raw text of the model's JSON reply.
	GenerateJSON(ctx context.Context, messages []Message) (string, error)
}

// Provider names accepted by New.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderCompat = "compat"
)

// Default model settings.
const (
	DefaultModel               = "gpt-4o-mini"
	DefaultGeminiModel         = "gemini-2.5-flash"
	DefaultTemperature         = 0.7
	DefaultMaxCompletionTokens = 2048
)

var (
	// ErrNoChoicesReturned is returned when the provider answers without any candidate.
	ErrNoChoicesReturned = errors.New("no choices returned")
	// ErrNoAPIKey is returned when a provider that needs a key has none.
	ErrNoAPIKey = errors.New("API key not set")
)

// Opts holds configuration for model clients.
type Opts struct {
	APIKey              string
	Model               string
	BaseURL             string
	Temperature         float64
	MaxCompletionTokens int
	DebugMode           bool
	StateDir            string
}

// Option defines a functional option for configuring model clients.
type Option func(*Opts)

// WithAPIKey sets the provider API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// WithBaseURL points the client at a non-default endpoint.
func WithBaseURL(url string) Option {
	return func(o *Opts) {
		o.BaseURL = url
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Opts) {
		o.Temperature = t
	}
}

// WithMaxCompletionTokens caps the reply length.
func WithMaxCompletionTokens(n int) Option {
	return func(o *Opts) {
		o.MaxCompletionTokens = n
	}
}

// WithDebugMode writes every request/response pair as JSON under StateDir/debug.
func WithDebugMode(enabled bool) Option {
	return func(o *Opts) {
		o.DebugMode = enabled
	}
}

// WithStateDir sets the directory used for debug output.
func WithStateDir(dir string) Option {
	return func(o *Opts) {
		o.StateDir = dir
	}
}

func applyOpts(opts []Option) Opts {
	cfg := Opts{
		Temperature:         DefaultTemperature,
		MaxCompletionTokens: DefaultMaxCompletionTokens,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// New creates the client for the named provider.
func New(provider string, opts ...Option) (ClientInterface, error) {
	// concrete constructors return typed nils on error; keep them out of the interface
	switch provider {
	case "", ProviderOpenAI:
		c, err := NewClient(opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ProviderGemini:
		c, err := NewGeminiClient(context.Background(), opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ProviderCompat:
		c, err := NewCompatClient(opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", provider)
	}
}

// chatService defines minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// completionsAdapter adapts the SDK completion service to chatService.
type completionsAdapter struct {
	svc *openai.ChatCompletionService
}

func (a completionsAdapter) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := a.svc.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Client wraps the OpenAI ChatCompletion service.
type Client struct {
	chat                chatService
	model               string
	temperature         float64
	maxCompletionTokens int
	debugMode           bool
	stateDir            string
}

// NewClient initializes an OpenAI client. An API key is required.
func NewClient(opts ...Option) (*Client, error) {
	cfg := applyOpts(opts)
	slog.Debug("genai.NewClient: creating OpenAI client", "apiKey_set", cfg.APIKey != "", "model", cfg.Model, "baseURL_set", cfg.BaseURL != "")
	if cfg.APIKey == "" {
		slog.Error("genai.NewClient: API key not set")
		return nil, fmt.Errorf("openai: %w", ErrNoAPIKey)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	cli := openai.NewClient(reqOpts...)
	return &Client{
		chat:                completionsAdapter{svc: &cli.Chat.Completions},
		model:               model,
		temperature:         cfg.Temperature,
		maxCompletionTokens: cfg.MaxCompletionTokens,
		debugMode:           cfg.DebugMode,
		stateDir:            cfg.StateDir,
	}, nil
}

// toOpenAIMessages converts provider-neutral messages to SDK params.
func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// GenerateJSON requests a JSON object reply.
func (c *Client) GenerateJSON(ctx context.Context, messages []Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: toOpenAIMessages(messages),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}
	if c.temperature > 0 {
		params.Temperature = openai.Float(c.temperature)
	}
	if c.maxCompletionTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(c.maxCompletionTokens))
	}

	start := time.Now()
	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		slog.Error("Client.GenerateJSON: completion failed", "model", c.model, "error", err, "elapsed", time.Since(start))
		return "", err
	}
	if len(resp.Choices) == 0 {
		slog.Warn("Client.GenerateJSON: no choices returned", "model", c.model)
		return "", ErrNoChoicesReturned
	}
	content := resp.Choices[0].Message.Content
	slog.Debug("Client.GenerateJSON: completion succeeded", "model", c.model, "length", len(content), "elapsed", time.Since(start))
	if c.debugMode {
		c.writeDebugLog("GenerateJSON", messages, content)
	}
	return content, nil
}
