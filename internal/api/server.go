// Package api provides the HTTP server for Jinny.
//
// It exposes persona, interview and recommendation endpoints over net/http and wires the
// store, model client and interview engine together.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BTreeMap/Jinny/internal/genai"
	"github.com/BTreeMap/Jinny/internal/interview"
	"github.com/BTreeMap/Jinny/internal/recommend"
	"github.com/BTreeMap/Jinny/internal/store"
)

// Server defaults.
const (
	DefaultServerAddress     = ":8080"
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultShutdownTimeout   = 15 * time.Second
)

// Opts holds configuration for the API server.
type Opts struct {
	Addr          string
	ModelProvider string
	RulesFallback bool
	Catalog       *recommend.Catalog
	Retry         *genai.RetryPolicy
}

// Option defines a functional option for configuring the API server.
type Option func(*Opts)

// WithAddr sets the HTTP listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithModelProvider selects the model provider passed to genai.New.
func WithModelProvider(provider string) Option {
	return func(o *Opts) {
		o.ModelProvider = provider
	}
}

// WithRulesFallback serves catalog questions when no model is configured.
func WithRulesFallback(enabled bool) Option {
	return func(o *Opts) {
		o.RulesFallback = enabled
	}
}

// WithCatalog replaces the embedded question catalog.
func WithCatalog(c *recommend.Catalog) Option {
	return func(o *Opts) {
		o.Catalog = c
	}
}

// WithRetryPolicy sets attempts and per-call timeout for model invocations.
func WithRetryPolicy(p genai.RetryPolicy) Option {
	return func(o *Opts) {
		o.Retry = &p
	}
}

// Server handles HTTP requests for the interview engine.
type Server struct {
	st            store.Store
	hasModel      bool
	rulesFallback bool
	addr          string

	generator *interview.QuestionGenerator
	ingestor  *interview.AnswerIngestor
	profiles  *interview.ProfileBuilder
	synth     *recommend.Synthesizer
	rules     *recommend.RuleBasedRecommender
}

// NewServer wires the engine components over st. model may be nil; model-backed
// endpoints then fail with 502 unless the rules fallback serves them.
func NewServer(st store.Store, model genai.ClientInterface, opts ...Option) (*Server, error) {
	cfg := Opts{Addr: DefaultServerAddress}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Catalog == nil {
		c, err := recommend.DefaultCatalog()
		if err != nil {
			return nil, fmt.Errorf("failed to load question catalog: %w", err)
		}
		cfg.Catalog = c
	}
	var engineOpts []interview.Option
	if cfg.Retry != nil {
		engineOpts = append(engineOpts, interview.WithRetryPolicy(*cfg.Retry))
	}

	slog.Debug("Server.New: wiring components", "model_set", model != nil, "rules_fallback", cfg.RulesFallback, "catalog_entries", cfg.Catalog.Len())
	return &Server{
		st:            st,
		hasModel:      model != nil,
		rulesFallback: cfg.RulesFallback,
		addr:          cfg.Addr,
		generator:     interview.NewQuestionGenerator(st, model, engineOpts...),
		ingestor:      interview.NewAnswerIngestor(st),
		profiles:      interview.NewProfileBuilder(st, st),
		synth:         recommend.NewSynthesizer(st, model, engineOpts...),
		rules:         recommend.NewRuleBasedRecommender(st, cfg.Catalog),
	}, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /personas", s.createPersonaHandler)
	mux.HandleFunc("GET /personas/{id}", s.getPersonaHandler)
	mux.HandleFunc("GET /personas/{id}/questions/next", s.nextQuestionsHandler)
	mux.HandleFunc("GET /personas/{id}/questions", s.listQuestionsHandler)
	mux.HandleFunc("POST /personas/{id}/answers", s.submitAnswersHandler)
	mux.HandleFunc("POST /answers", s.submitAnswersHandler)
	mux.HandleFunc("POST /questions/{id}/answer", s.submitAnswerHandler)
	mux.HandleFunc("POST /personas/{id}/recommendations", s.recommendationsHandler)
	mux.HandleFunc("GET /personas/{id}/profile", s.profileHandler)
	mux.HandleFunc("DELETE /personas/{id}/conversation", s.resetConversationHandler)
	mux.HandleFunc("GET /health", s.healthHandler)
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.ListenAndServe: listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		slog.Info("Server.ListenAndServe: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down HTTP server: %w", err)
		}
		return nil
	}
}

// Run opens the store and model client, then serves until SIGINT or SIGTERM.
func Run(storeOpts []store.Option, genaiOpts []genai.Option, apiOpts []Option) error {
	var cfg Opts
	for _, opt := range apiOpts {
		opt(&cfg)
	}

	st, err := store.New(storeOpts...)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("Server.Run: failed to close store", "error", err)
		}
	}()

	var model genai.ClientInterface
	client, err := genai.New(cfg.ModelProvider, genaiOpts...)
	switch {
	case errors.Is(err, genai.ErrNoAPIKey):
		slog.Warn("Server.Run: no model API key configured, model-backed endpoints are disabled", "provider", cfg.ModelProvider)
	case err != nil:
		return fmt.Errorf("failed to create model client: %w", err)
	default:
		model = client
		if c, ok := client.(io.Closer); ok {
			defer c.Close()
		}
	}

	srv, err := NewServer(st, model, apiOpts...)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx)
}
