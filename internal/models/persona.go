package models

import (
	"errors"
	"time"
)

// Gender of the gift recipient. Empty means not given.
type Gender string

const (
	GenderMale      Gender = "male"
	GenderFemale    Gender = "female"
	GenderNonBinary Gender = "non-binary"
)

// GenderUnknown is the profile value used when no gender was given.
const GenderUnknown = "unknown"

// Occasion the gift is for.
type Occasion string

const (
	OccasionBirthday   Occasion = "birthday"
	OccasionChristmas  Occasion = "christmas"
	OccasionValentine  Occasion = "valentine"
	OccasionGraduation Occasion = "graduation"
	OccasionWedding    Occasion = "wedding"
	OccasionBabyShower Occasion = "babyshower"
	OccasionOther      Occasion = "other"
)

// Relationship between the giver and the recipient.
type Relationship string

const (
	RelationshipPartner      Relationship = "partner"
	RelationshipParent       Relationship = "parent"
	RelationshipChild        Relationship = "child"
	RelationshipSibling      Relationship = "sibling"
	RelationshipFriend       Relationship = "friend"
	RelationshipColleague    Relationship = "colleague"
	RelationshipAcquaintance Relationship = "acquaintance"
	RelationshipOther        Relationship = "other"
)

// Budget is a coded spending bracket.
type Budget string

const (
	BudgetUnder50  Budget = "<50"
	Budget50To100  Budget = "50-100"
	Budget100To200 Budget = "100-200"
	BudgetOver200  Budget = "200+"
	BudgetNoLimit  Budget = "no_limit"
)

// MaxPersonaAge bounds the accepted recipient age.
const MaxPersonaAge = 130

var (
	ErrInvalidAge          = errors.New("age must be between 0 and 130")
	ErrInvalidGender       = errors.New("invalid gender")
	ErrInvalidOccasion     = errors.New("invalid occasion")
	ErrInvalidRelationship = errors.New("invalid relationship")
	ErrInvalidBudget       = errors.New("invalid budget")
)

// IsValidGender reports whether g is empty or a known gender.
func IsValidGender(g Gender) bool {
	switch g {
	case "", GenderMale, GenderFemale, GenderNonBinary:
		return true
	default:
		return false
	}
}

// IsValidOccasion reports whether o is a known occasion.
func IsValidOccasion(o Occasion) bool {
	switch o {
	case OccasionBirthday, OccasionChristmas, OccasionValentine, OccasionGraduation,
		OccasionWedding, OccasionBabyShower, OccasionOther:
		return true
	default:
		return false
	}
}

// IsValidRelationship reports whether r is a known relationship.
func IsValidRelationship(r Relationship) bool {
	switch r {
	case RelationshipPartner, RelationshipParent, RelationshipChild, RelationshipSibling,
		RelationshipFriend, RelationshipColleague, RelationshipAcquaintance, RelationshipOther:
		return true
	default:
		return false
	}
}

// IsValidBudget reports whether b is empty or a known budget code.
func IsValidBudget(b Budget) bool {
	switch b {
	case "", BudgetUnder50, Budget50To100, Budget100To200, BudgetOver200, BudgetNoLimit:
		return true
	default:
		return false
	}
}

// Persona is the stored description of a gift recipient.
type Persona struct {
	ID           string       `json:"id"`
	Age          int          `json:"age"`
	Gender       Gender       `json:"gender,omitempty"`
	Occasion     Occasion     `json:"occasion"`
	Relationship Relationship `json:"relationship"`
	Budget       Budget       `json:"budget,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// PersonaRequest is the payload for creating a persona.
type PersonaRequest struct {
	Age          int          `json:"age"`
	Gender       Gender       `json:"gender,omitempty"`
	Occasion     Occasion     `json:"occasion"`
	Relationship Relationship `json:"relationship"`
	Budget       Budget       `json:"budget,omitempty"`
}

// Validate checks the request against the persona enumerations.
func (r *PersonaRequest) Validate() error {
	if r.Age < 0 || r.Age > MaxPersonaAge {
		return ErrInvalidAge
	}
	if !IsValidGender(r.Gender) {
		return ErrInvalidGender
	}
	if !IsValidOccasion(r.Occasion) {
		return ErrInvalidOccasion
	}
	if !IsValidRelationship(r.Relationship) {
		return ErrInvalidRelationship
	}
	if !IsValidBudget(r.Budget) {
		return ErrInvalidBudget
	}
	return nil
}

// PersonaProfile is the immutable view of a persona used for one generation call.
type PersonaProfile struct {
	PersonaID    string            `json:"persona_id"`
	Age          int               `json:"age"`
	Gender       string            `json:"gender"`
	Occasion     string            `json:"occasion"`
	Relationship string            `json:"relationship"`
	Budget       string            `json:"budget,omitempty"`
	Insights     []QuestionInsight `json:"question_insights"`
}
