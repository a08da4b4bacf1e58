package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/Jinny/internal/models"
	"github.com/BTreeMap/Jinny/internal/util"
)

// sqlStore implements Store over database/sql. Queries are written with ? placeholders
// and rebound for the driver in use.
type sqlStore struct {
	db     *sql.DB
	driver string
	name   string // log prefix, e.g. "SQLiteStore"
	seq    *util.Sequencer
}

func newSQLStore(db *sql.DB, driver, name string, node int64) (*sqlStore, error) {
	seq, err := util.NewSequencer(node)
	if err != nil {
		return nil, err
	}
	return &sqlStore{db: db, driver: driver, name: name, seq: seq}, nil
}

func (s *sqlStore) q(query string) string {
	return rebind(s.driver, query)
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *sqlStore) CreatePersona(ctx context.Context, p models.Persona) error {
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO personas (id, age, gender, occasion, relationship, budget, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.Age, string(p.Gender), string(p.Occasion), string(p.Relationship), string(p.Budget), p.CreatedAt.UTC())
	if err != nil {
		slog.Error(s.name+".CreatePersona: insert failed", "error", err, "personaID", p.ID)
		return fmt.Errorf("failed to insert persona %s: %w", p.ID, err)
	}
	slog.Debug(s.name+".CreatePersona: persona stored", "personaID", p.ID)
	return nil
}

func (s *sqlStore) GetPersona(ctx context.Context, id string) (*models.Persona, error) {
	var p models.Persona
	var gender, occasion, relationship, budget string
	row := s.db.QueryRowContext(ctx, s.q(`SELECT id, age, gender, occasion, relationship, budget, created_at FROM personas WHERE id = ?`), id)
	err := row.Scan(&p.ID, &p.Age, &gender, &occasion, &relationship, &budget, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error(s.name+".GetPersona: query failed", "error", err, "personaID", id)
		return nil, fmt.Errorf("failed to get persona %s: %w", id, err)
	}
	p.Gender = models.Gender(gender)
	p.Occasion = models.Occasion(occasion)
	p.Relationship = models.Relationship(relationship)
	p.Budget = models.Budget(budget)
	return &p, nil
}

func (s *sqlStore) AddQuestions(ctx context.Context, qs []models.InterviewQuestion) error {
	if len(qs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error(s.name+".AddQuestions: begin failed", "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.insertQuestions(ctx, tx, qs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		slog.Error(s.name+".AddQuestions: commit failed", "error", err)
		return fmt.Errorf("failed to commit questions: %w", err)
	}
	slog.Debug(s.name+".AddQuestions: questions stored", "count", len(qs), "personaID", qs[0].PersonaID)
	return nil
}

func (s *sqlStore) insertQuestions(ctx context.Context, ex execer, qs []models.InterviewQuestion) error {
	stmt := s.q(`INSERT INTO questions (id, persona_id, seq, question_text, choices, catalog_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	for _, q := range qs {
		choices, err := encodeChoices(q.Choices)
		if err != nil {
			return err
		}
		if _, err := ex.ExecContext(ctx, stmt, q.ID, q.PersonaID, s.seq.Next(), q.QuestionText, choices, nilIfEmpty(q.CatalogID), q.CreatedAt.UTC()); err != nil {
			slog.Error(s.name+".insertQuestions: insert failed", "error", err, "questionID", q.ID, "personaID", q.PersonaID)
			return fmt.Errorf("failed to insert question %s: %w", q.ID, err)
		}
	}
	return nil
}

func (s *sqlStore) GetQuestion(ctx context.Context, id string) (*models.InterviewQuestion, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+questionColumns+` FROM questions q WHERE q.id = ?`), id)
	q, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error(s.name+".GetQuestion: query failed", "error", err, "questionID", id)
		return nil, fmt.Errorf("failed to get question %s: %w", id, err)
	}
	return &q, nil
}

func (s *sqlStore) ListQuestions(ctx context.Context, personaID string) ([]models.InterviewQuestion, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT `+questionColumns+` FROM questions q WHERE q.persona_id = ? ORDER BY q.seq`), personaID)
	if err != nil {
		slog.Error(s.name+".ListQuestions: query failed", "error", err, "personaID", personaID)
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	defer rows.Close()

	qs := []models.InterviewQuestion{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			slog.Error(s.name+".ListQuestions: scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan question row: %w", err)
		}
		qs = append(qs, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate question rows: %w", err)
	}
	return qs, nil
}

func (s *sqlStore) AddAnswer(ctx context.Context, a models.InterviewAnswer) error {
	if err := s.insertAnswer(ctx, s.db, a); err != nil {
		return err
	}
	slog.Debug(s.name+".AddAnswer: answer stored", "answerID", a.ID, "questionID", a.QuestionID)
	return nil
}

func (s *sqlStore) insertAnswer(ctx context.Context, ex execer, a models.InterviewAnswer) error {
	_, err := ex.ExecContext(ctx, s.q(`INSERT INTO answers (id, question_id, seq, selected_text, created_at) VALUES (?, ?, ?, ?, ?)`),
		a.ID, a.QuestionID, s.seq.Next(), a.SelectedText, a.CreatedAt.UTC())
	if err != nil {
		slog.Error(s.name+".insertAnswer: insert failed", "error", err, "answerID", a.ID, "questionID", a.QuestionID)
		return fmt.Errorf("failed to insert answer %s: %w", a.ID, err)
	}
	return nil
}

func (s *sqlStore) ListAnsweredQuestions(ctx context.Context, personaID string) ([]models.AnsweredQuestion, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT `+questionColumns+`, a.id, a.selected_text, a.created_at
		FROM answers a JOIN questions q ON q.id = a.question_id
		WHERE q.persona_id = ? ORDER BY a.seq`), personaID)
	if err != nil {
		slog.Error(s.name+".ListAnsweredQuestions: query failed", "error", err, "personaID", personaID)
		return nil, fmt.Errorf("failed to query answers: %w", err)
	}
	defer rows.Close()

	var out []models.AnsweredQuestion
	for rows.Next() {
		var aq models.AnsweredQuestion
		var choicesJSON string
		var catalogID sql.NullString
		q := &aq.Question
		if err := rows.Scan(&q.ID, &q.PersonaID, &q.QuestionText, &choicesJSON, &catalogID, &q.CreatedAt,
			&aq.Answer.ID, &aq.Answer.SelectedText, &aq.Answer.CreatedAt); err != nil {
			slog.Error(s.name+".ListAnsweredQuestions: scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan answer row: %w", err)
		}
		if q.Choices, err = decodeChoices(choicesJSON); err != nil {
			return nil, err
		}
		q.CatalogID = catalogID.String
		aq.Answer.QuestionID = q.ID
		out = append(out, aq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate answer rows: %w", err)
	}
	return out, nil
}

func (s *sqlStore) AppendTurns(ctx context.Context, personaID string, turns []models.ConversationTurn) error {
	if len(turns) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error(s.name+".AppendTurns: begin failed", "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.insertTurns(ctx, tx, personaID, turns); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		slog.Error(s.name+".AppendTurns: commit failed", "error", err, "personaID", personaID)
		return fmt.Errorf("failed to commit conversation turns: %w", err)
	}
	slog.Debug(s.name+".AppendTurns: turns appended", "personaID", personaID, "count", len(turns))
	return nil
}

// insertTurns checks the persona exists, then assigns Seq and inserts turns in order.
func (s *sqlStore) insertTurns(ctx context.Context, ex execer, personaID string, turns []models.ConversationTurn) error {
	var exists int
	err := ex.QueryRowContext(ctx, s.q(`SELECT 1 FROM personas WHERE id = ?`), personaID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrUnknownPersona, personaID)
	}
	if err != nil {
		return fmt.Errorf("failed to check persona %s: %w", personaID, err)
	}

	now := time.Now().UTC()
	stmt := s.q(`INSERT INTO conversation_turns (seq, persona_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`)
	for i := range turns {
		t := &turns[i]
		t.Seq = s.seq.Next()
		t.PersonaID = personaID
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		if _, err := ex.ExecContext(ctx, stmt, t.Seq, personaID, string(t.Role), t.Content, t.CreatedAt.UTC()); err != nil {
			slog.Error(s.name+".insertTurns: insert failed", "error", err, "personaID", personaID)
			return fmt.Errorf("failed to insert conversation turn: %w", err)
		}
	}
	return nil
}

func (s *sqlStore) RecordExchanges(ctx context.Context, exchanges ...Exchange) error {
	if len(exchanges) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error(s.name+".RecordExchanges: begin failed", "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, ex := range exchanges {
		if err := s.insertQuestions(ctx, tx, ex.Questions); err != nil {
			return err
		}
		for _, a := range ex.Answers {
			if err := s.insertAnswer(ctx, tx, a); err != nil {
				return err
			}
		}
		if len(ex.Turns) > 0 {
			if err := s.insertTurns(ctx, tx, ex.PersonaID, ex.Turns); err != nil {
				return err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		slog.Error(s.name+".RecordExchanges: commit failed", "error", err)
		return fmt.Errorf("failed to commit exchanges: %w", err)
	}
	slog.Debug(s.name+".RecordExchanges: exchanges stored", "count", len(exchanges), "personaID", exchanges[0].PersonaID)
	return nil
}

func (s *sqlStore) LoadTurns(ctx context.Context, personaID string) ([]models.ConversationTurn, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT seq, persona_id, role, content, created_at FROM conversation_turns WHERE persona_id = ? ORDER BY seq`), personaID)
	if err != nil {
		slog.Error(s.name+".LoadTurns: query failed", "error", err, "personaID", personaID)
		return nil, fmt.Errorf("failed to query conversation turns: %w", err)
	}
	defer rows.Close()

	turns := []models.ConversationTurn{}
	for rows.Next() {
		var t models.ConversationTurn
		var role string
		if err := rows.Scan(&t.Seq, &t.PersonaID, &role, &t.Content, &t.CreatedAt); err != nil {
			slog.Error(s.name+".LoadTurns: scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan conversation turn: %w", err)
		}
		t.Role = models.TurnRole(role)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversation turns: %w", err)
	}
	slog.Debug(s.name+".LoadTurns: loaded turns", "personaID", personaID, "count", len(turns))
	return turns, nil
}

func (s *sqlStore) ClearTurns(ctx context.Context, personaID string) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM conversation_turns WHERE persona_id = ?`), personaID)
	if err != nil {
		slog.Error(s.name+".ClearTurns: delete failed", "error", err, "personaID", personaID)
		return fmt.Errorf("failed to clear conversation turns: %w", err)
	}
	n, _ := res.RowsAffected()
	slog.Debug(s.name+".ClearTurns: cleared turns", "personaID", personaID, "count", n)
	return nil
}

// Close closes the underlying database connection.
func (s *sqlStore) Close() error {
	slog.Debug(s.name + ".Close: closing database connection")
	return s.db.Close()
}
