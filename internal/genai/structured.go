package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Retry defaults for structured generation.
const (
	DefaultAttempts = 3
	DefaultTimeout  = 60 * time.Second
)

// RetryPolicy bounds structured generation: how many attempts and how long each may take.
type RetryPolicy struct {
	Attempts int
	Timeout  time.Duration
}

// DefaultRetryPolicy is used when a caller does not configure one.
var DefaultRetryPolicy = RetryPolicy{Attempts: DefaultAttempts, Timeout: DefaultTimeout}

// ErrMalformedOutput marks a reply that could not be decoded into the expected schema.
var ErrMalformedOutput = errors.New("malformed model output")

// Generate invokes client until decode accepts a reply or the attempts run out.
// decode receives the reply with code fences removed and should wrap ErrMalformedOutput
// for schema problems. Cancellation of ctx stops immediately.
func (p RetryPolicy) Generate(ctx context.Context, client ClientInterface, op string, messages []Message, decode func(raw string) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		raw, err := p.call(ctx, client, messages)
		if err == nil {
			err = decode(ExtractJSON(raw))
			if err == nil {
				slog.Debug("genai.Generate: structured output accepted", "op", op, "attempt", attempt)
				return nil
			}
		}
		lastErr = err
		slog.Warn("genai.Generate: attempt failed", "op", op, "attempt", attempt, "of", attempts, "error", err)
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
	}
	return fmt.Errorf("%s: giving up after %d attempts: %w", op, attempts, lastErr)
}

func (p RetryPolicy) call(ctx context.Context, client ClientInterface, messages []Message) (string, error) {
	if p.Timeout <= 0 {
		return client.GenerateJSON(ctx, messages)
	}
	callCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	return client.GenerateJSON(callCtx, messages)
}

// ExtractJSON strips surrounding whitespace and Markdown code fences from a model reply.
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// drop an info string such as "json"
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		if !strings.ContainsAny(s[:i], "{[") {
			s = s[i+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
