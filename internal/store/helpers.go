package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/BTreeMap/Jinny/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// rebind rewrites ? placeholders to $1, $2, ... for PostgreSQL.
func rebind(driver, query string) string {
	if driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func encodeChoices(choices []string) (string, error) {
	if choices == nil {
		choices = []string{}
	}
	raw, err := json.Marshal(choices)
	if err != nil {
		return "", fmt.Errorf("failed to encode choices: %w", err)
	}
	return string(raw), nil
}

func decodeChoices(raw string) ([]string, error) {
	var choices []string
	if raw == "" {
		return choices, nil
	}
	if err := json.Unmarshal([]byte(raw), &choices); err != nil {
		return nil, fmt.Errorf("failed to decode choices: %w", err)
	}
	return choices, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanQuestion scans the columns listed in questionColumns.
func scanQuestion(r rowScanner) (models.InterviewQuestion, error) {
	var q models.InterviewQuestion
	var choicesJSON string
	var catalogID sql.NullString
	if err := r.Scan(&q.ID, &q.PersonaID, &q.QuestionText, &choicesJSON, &catalogID, &q.CreatedAt); err != nil {
		return q, err
	}
	choices, err := decodeChoices(choicesJSON)
	if err != nil {
		return q, err
	}
	q.Choices = choices
	q.CatalogID = catalogID.String
	return q, nil
}

const questionColumns = `q.id, q.persona_id, q.question_text, q.choices, q.catalog_id, q.created_at`
