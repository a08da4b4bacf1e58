package recommend

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BTreeMap/Jinny/internal/interview"
	"github.com/BTreeMap/Jinny/internal/models"
	"github.com/BTreeMap/Jinny/internal/store"
	"github.com/BTreeMap/Jinny/internal/util"
)

// DefaultWeight is assigned to catalog entries that omit a weight.
const DefaultWeight = 1.0

//go:embed catalog.yaml
var catalogFS embed.FS

// CatalogEntry is one candidate question of the static catalog.
type CatalogEntry struct {
	ID       string   `yaml:"id"`
	Question string   `yaml:"question"`
	Choices  []string `yaml:"choices"`
	Weight   *float64 `yaml:"weight"`
}

func (e CatalogEntry) weight() float64 {
	if e.Weight == nil {
		return DefaultWeight
	}
	return *e.Weight
}

type yamlCatalog struct {
	Catalog   string         `yaml:"catalog"`
	Version   int            `yaml:"version"`
	Questions []CatalogEntry `yaml:"questions"`
}

// Catalog is a validated, ordered list of candidate questions.
type Catalog struct {
	entries []CatalogEntry
}

// ParseCatalog decodes and validates catalog YAML.
func ParseCatalog(data []byte) (*Catalog, error) {
	var doc yamlCatalog
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse question catalog: %w", err)
	}
	if len(doc.Questions) == 0 {
		return nil, errors.New("question catalog has no questions")
	}
	seen := make(map[string]bool, len(doc.Questions))
	entries := make([]CatalogEntry, 0, len(doc.Questions))
	for i, e := range doc.Questions {
		e.ID = strings.TrimSpace(e.ID)
		e.Question = strings.TrimSpace(e.Question)
		if e.ID == "" {
			return nil, fmt.Errorf("catalog entry %d: id is required", i)
		}
		if e.Question == "" {
			return nil, fmt.Errorf("catalog entry %s: question is required", e.ID)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("duplicate catalog id: %s", e.ID)
		}
		seen[e.ID] = true
		e.Choices = interview.NormalizeChoiceStrings(e.Choices, interview.SimpleChoiceCount, interview.DefaultsFor(interview.SimpleChoiceCount))
		entries = append(entries, e)
	}
	return &Catalog{entries: entries}, nil
}

// LoadCatalogFile reads a catalog from disk.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// DefaultCatalog returns the embedded catalog, parsed once.
func DefaultCatalog() (*Catalog, error) {
	defaultOnce.Do(func() {
		data, err := catalogFS.ReadFile("catalog.yaml")
		if err != nil {
			defaultErr = err
			return
		}
		defaultCatalog, defaultErr = ParseCatalog(data)
	})
	return defaultCatalog, defaultErr
}

// Len reports the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Pick returns the highest-weighted entry whose id is not in asked. Equal weights keep
// catalog order. ok is false when every entry has been asked.
func (c *Catalog) Pick(asked map[string]bool) (entry CatalogEntry, ok bool) {
	for _, e := range c.entries {
		if asked[e.ID] {
			continue
		}
		if !ok || e.weight() > entry.weight() {
			entry, ok = e, true
		}
	}
	return entry, ok
}

// RuleBasedRecommender picks the next interview question from a static catalog without a model.
type RuleBasedRecommender struct {
	store   store.Store
	catalog *Catalog
}

// NewRuleBasedRecommender creates a recommender over the given catalog.
func NewRuleBasedRecommender(s store.Store, c *Catalog) *RuleBasedRecommender {
	return &RuleBasedRecommender{store: s, catalog: c}
}

// Next persists and returns the next catalog question for a persona, or nil when the
// catalog is exhausted. Catalog questions are ordinary questions, so answers go through
// the normal ingestion path.
func (r *RuleBasedRecommender) Next(ctx context.Context, personaID string) (*models.GeneratedQuestion, error) {
	const op = "RuleBasedRecommender.Next"
	if _, err := interview.GetPersona(ctx, r.store, personaID); err != nil {
		return nil, err
	}
	qs, err := r.store.ListQuestions(ctx, personaID)
	if err != nil {
		return nil, models.StorageFailed(op, err)
	}
	asked := make(map[string]bool, len(qs))
	for _, q := range qs {
		if q.CatalogID != "" {
			asked[q.CatalogID] = true
		}
	}

	entry, ok := r.catalog.Pick(asked)
	if !ok {
		slog.Info(op+": catalog exhausted", "personaID", personaID, "asked", len(asked))
		return nil, nil
	}
	q := models.InterviewQuestion{
		ID:           util.NewID(),
		PersonaID:    personaID,
		QuestionText: entry.Question,
		Choices:      entry.Choices,
		CatalogID:    entry.ID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := r.store.AddQuestions(ctx, []models.InterviewQuestion{q}); err != nil {
		return nil, models.StorageFailed(op, err)
	}
	slog.Debug(op+": question picked", "personaID", personaID, "catalogID", entry.ID, "weight", entry.weight())
	return &models.GeneratedQuestion{ID: q.ID, QuestionText: q.QuestionText, Choices: q.Choices}, nil
}
