// Package store provides storage backends for Jinny.
//
// It includes an in-memory store and SQL-backed stores for SQLite, PostgreSQL and MySQL.
// Lookups of a single record return (nil, nil) when the record does not exist.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/BTreeMap/Jinny/internal/models"
)

// ErrUnknownPersona is returned when a write references a persona id the store has never seen.
var ErrUnknownPersona = errors.New("unknown persona")

// PersonaStore persists persona records.
type PersonaStore interface {
	CreatePersona(ctx context.Context, p models.Persona) error
	GetPersona(ctx context.Context, id string) (*models.Persona, error)
}

// QuestionStore persists interview questions and their answers.
type QuestionStore interface {
	// AddQuestions writes all questions in one transaction, preserving slice order.
	AddQuestions(ctx context.Context, qs []models.InterviewQuestion) error
	GetQuestion(ctx context.Context, id string) (*models.InterviewQuestion, error)
	// ListQuestions returns a persona's questions, oldest first.
	ListQuestions(ctx context.Context, personaID string) ([]models.InterviewQuestion, error)
	AddAnswer(ctx context.Context, a models.InterviewAnswer) error
	// ListAnsweredQuestions joins each answer with its question, in answer order.
	ListAnsweredQuestions(ctx context.Context, personaID string) ([]models.AnsweredQuestion, error)
}

// ConversationStore is the append-only, persona-scoped dialogue log.
type ConversationStore interface {
	// AppendTurns durably stores turns in order and assigns their Seq.
	AppendTurns(ctx context.Context, personaID string, turns []models.ConversationTurn) error
	// LoadTurns returns all turns for a persona, oldest first. No history is an empty slice.
	LoadTurns(ctx context.Context, personaID string) ([]models.ConversationTurn, error)
	// ClearTurns removes all turns for a persona.
	ClearTurns(ctx context.Context, personaID string) error
}

// Exchange groups the rows one interview step writes for a persona: the questions or
// answers themselves and the conversation turns that record them.
type Exchange struct {
	PersonaID string
	Questions []models.InterviewQuestion
	Answers   []models.InterviewAnswer
	Turns     []models.ConversationTurn
}

// ExchangeStore commits interview steps atomically.
type ExchangeStore interface {
	// RecordExchanges writes every exchange in one transaction (questions, then answers,
	// then turns) and assigns turn Seq. Nothing is written if any part fails.
	RecordExchanges(ctx context.Context, exchanges ...Exchange) error
}

// Store is the full persistence contract used by the interview engine.
type Store interface {
	PersonaStore
	QuestionStore
	ConversationStore
	ExchangeStore
	Close() error
}

// Opts holds configuration for stores.
type Opts struct {
	DSN  string // database connection string
	Node int64  // snowflake node used for sequence numbers
}

// Option defines a functional option for configuring stores.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithMySQLDSN sets the MySQL connection string, with or without a mysql:// prefix.
func WithMySQLDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithNode sets the snowflake node number. Instances sharing one database should use distinct nodes.
func WithNode(node int64) Option {
	return func(o *Opts) {
		o.Node = node
	}
}

// Driver names returned by DetectDSNType.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// DetectDSNType guesses the database driver for a DSN.
// Anything that is not recognisably PostgreSQL or MySQL is treated as a SQLite file path.
func DetectDSNType(dsn string) string {
	d := strings.TrimSpace(dsn)
	switch {
	case strings.HasPrefix(d, "postgres://"), strings.HasPrefix(d, "postgresql://"), strings.Contains(d, "host="):
		return DriverPostgres
	case strings.HasPrefix(d, "mysql://"), strings.Contains(d, "@tcp("), strings.Contains(d, "@unix("):
		return DriverMySQL
	default:
		return DriverSQLite
	}
}

// New opens the store matching the configured DSN, or an in-memory store when no DSN is set.
func New(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return NewInMemoryStore(opts...)
	}
	switch DetectDSNType(cfg.DSN) {
	case DriverPostgres:
		return NewPostgresStore(opts...)
	case DriverMySQL:
		return NewMySQLStore(opts...)
	default:
		return NewSQLiteStore(opts...)
	}
}
