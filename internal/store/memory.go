package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/BTreeMap/Jinny/internal/models"
	"github.com/BTreeMap/Jinny/internal/util"
)

// InMemoryStore keeps every record in process memory. Data is lost on restart.
type InMemoryStore struct {
	mu        sync.RWMutex
	seq       *util.Sequencer
	personas  map[string]models.Persona
	questions map[string]models.InterviewQuestion
	qOrder    map[string][]string // persona id -> question ids, oldest first
	answers   []models.InterviewAnswer
	turns     map[string][]models.ConversationTurn
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore(opts ...Option) (*InMemoryStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	seq, err := util.NewSequencer(cfg.Node)
	if err != nil {
		return nil, err
	}
	slog.Debug("InMemoryStore.New: created in-memory store")
	return &InMemoryStore{
		seq:       seq,
		personas:  make(map[string]models.Persona),
		questions: make(map[string]models.InterviewQuestion),
		qOrder:    make(map[string][]string),
		turns:     make(map[string][]models.ConversationTurn),
	}, nil
}

func (s *InMemoryStore) CreatePersona(ctx context.Context, p models.Persona) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.personas[p.ID]; ok {
		return fmt.Errorf("persona %s already exists", p.ID)
	}
	s.personas[p.ID] = p
	return nil
}

func (s *InMemoryStore) GetPersona(ctx context.Context, id string) (*models.Persona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.personas[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *InMemoryStore) AddQuestions(ctx context.Context, qs []models.InterviewQuestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range qs {
		if _, ok := s.personas[q.PersonaID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownPersona, q.PersonaID)
		}
		if _, ok := s.questions[q.ID]; ok {
			return fmt.Errorf("question %s already exists", q.ID)
		}
	}
	for _, q := range qs {
		q.Choices = slices.Clone(q.Choices)
		s.questions[q.ID] = q
		s.qOrder[q.PersonaID] = append(s.qOrder[q.PersonaID], q.ID)
	}
	slog.Debug("InMemoryStore.AddQuestions: stored questions", "count", len(qs))
	return nil
}

func (s *InMemoryStore) GetQuestion(ctx context.Context, id string) (*models.InterviewQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return nil, nil
	}
	q.Choices = slices.Clone(q.Choices)
	return &q, nil
}

func (s *InMemoryStore) ListQuestions(ctx context.Context, personaID string) ([]models.InterviewQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.qOrder[personaID]
	out := make([]models.InterviewQuestion, 0, len(ids))
	for _, id := range ids {
		q := s.questions[id]
		q.Choices = slices.Clone(q.Choices)
		out = append(out, q)
	}
	return out, nil
}

func (s *InMemoryStore) AddAnswer(ctx context.Context, a models.InterviewAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[a.QuestionID]; !ok {
		return fmt.Errorf("unknown question %s", a.QuestionID)
	}
	s.answers = append(s.answers, a)
	return nil
}

func (s *InMemoryStore) ListAnsweredQuestions(ctx context.Context, personaID string) ([]models.AnsweredQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.AnsweredQuestion
	for _, a := range s.answers {
		q := s.questions[a.QuestionID]
		if q.PersonaID != personaID {
			continue
		}
		q.Choices = slices.Clone(q.Choices)
		out = append(out, models.AnsweredQuestion{Question: q, Answer: a})
	}
	return out, nil
}

func (s *InMemoryStore) AppendTurns(ctx context.Context, personaID string, turns []models.ConversationTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.personas[personaID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPersona, personaID)
	}
	now := time.Now().UTC()
	for i := range turns {
		turns[i].Seq = s.seq.Next()
		turns[i].PersonaID = personaID
		if turns[i].CreatedAt.IsZero() {
			turns[i].CreatedAt = now
		}
	}
	s.turns[personaID] = append(s.turns[personaID], turns...)
	slog.Debug("InMemoryStore.AppendTurns: appended turns", "personaID", personaID, "count", len(turns))
	return nil
}

func (s *InMemoryStore) RecordExchanges(ctx context.Context, exchanges ...Exchange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	newQuestions := make(map[string]string) // question id -> persona id
	for _, ex := range exchanges {
		if _, ok := s.personas[ex.PersonaID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownPersona, ex.PersonaID)
		}
		for _, q := range ex.Questions {
			if _, ok := s.personas[q.PersonaID]; !ok {
				return fmt.Errorf("%w: %s", ErrUnknownPersona, q.PersonaID)
			}
			_, stored := s.questions[q.ID]
			if _, pending := newQuestions[q.ID]; stored || pending {
				return fmt.Errorf("question %s already exists", q.ID)
			}
			newQuestions[q.ID] = q.PersonaID
		}
		for _, a := range ex.Answers {
			_, stored := s.questions[a.QuestionID]
			if _, pending := newQuestions[a.QuestionID]; !stored && !pending {
				return fmt.Errorf("unknown question %s", a.QuestionID)
			}
		}
	}

	now := time.Now().UTC()
	for _, ex := range exchanges {
		for _, q := range ex.Questions {
			q.Choices = slices.Clone(q.Choices)
			s.questions[q.ID] = q
			s.qOrder[q.PersonaID] = append(s.qOrder[q.PersonaID], q.ID)
		}
		s.answers = append(s.answers, ex.Answers...)
		for i := range ex.Turns {
			ex.Turns[i].Seq = s.seq.Next()
			ex.Turns[i].PersonaID = ex.PersonaID
			if ex.Turns[i].CreatedAt.IsZero() {
				ex.Turns[i].CreatedAt = now
			}
		}
		s.turns[ex.PersonaID] = append(s.turns[ex.PersonaID], ex.Turns...)
	}
	slog.Debug("InMemoryStore.RecordExchanges: stored exchanges", "count", len(exchanges))
	return nil
}

func (s *InMemoryStore) LoadTurns(ctx context.Context, personaID string) ([]models.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.turns[personaID]), nil
}

func (s *InMemoryStore) ClearTurns(ctx context.Context, personaID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.turns, personaID)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
