package interview

import (
	"fmt"
	"strings"
	"unicode"
)

// Choice counts per question schema.
const (
	ChoiceCount       = 4 // generated questions: three specific options plus NoneOfTheAbove
	SimpleChoiceCount = 3 // catalog questions
)

// NoneOfTheAbove is the escape option offered as the fourth choice.
const NoneOfTheAbove = "None of the above"

var (
	// DefaultChoices pads four-choice questions.
	DefaultChoices = []string{"Yes", "Maybe", "No", NoneOfTheAbove}
	// SimpleDefaultChoices pads three-choice questions.
	SimpleDefaultChoices = []string{"Yes", "Maybe", "No"}
)

// DefaultsFor returns the padding list for a target choice count.
func DefaultsFor(target int) []string {
	if target >= ChoiceCount {
		return DefaultChoices
	}
	return SimpleDefaultChoices
}

func isTrailingJunk(r rune) bool {
	return r == '.' || r == '?' || r == '!' || unicode.IsSpace(r)
}

// cleanChoice trims whitespace and any trailing run of . ? ! characters.
func cleanChoice(s string) string {
	return strings.TrimLeftFunc(strings.TrimRightFunc(s, isTrailingJunk), unicode.IsSpace)
}

// NormalizeChoices coerces raw model output into exactly target distinct choices.
//
// Non-string and empty entries are dropped, trailing punctuation is stripped, and
// case-insensitive duplicates are removed keeping the first spelling. The result is
// truncated to target, then padded from defaults (skipping collisions) and finally
// with "Option N" placeholders. The function is pure and idempotent.
func NormalizeChoices(raw []any, target int, defaults []string) []string {
	if target <= 0 {
		return []string{}
	}
	out := make([]string, 0, target)
	seen := make(map[string]bool, target)
	add := func(s string) bool {
		c := cleanChoice(s)
		if c == "" || seen[strings.ToLower(c)] {
			return false
		}
		seen[strings.ToLower(c)] = true
		out = append(out, c)
		return true
	}

	for _, v := range raw {
		if len(out) == target {
			break
		}
		if s, ok := v.(string); ok {
			add(s)
		}
	}
	for _, d := range defaults {
		if len(out) == target {
			break
		}
		add(d)
	}
	for n := 1; len(out) < target; n++ {
		add(fmt.Sprintf("Option %d", n))
	}
	return out
}

// NormalizeChoiceStrings is NormalizeChoices for an already typed list.
func NormalizeChoiceStrings(raw []string, target int, defaults []string) []string {
	vals := make([]any, len(raw))
	for i, s := range raw {
		vals[i] = s
	}
	return NormalizeChoices(vals, target, defaults)
}

// coerceChoices turns a decoded JSON value into a choice list. Anything other than a
// non-empty array yields nil, which NormalizeChoices pads with defaults.
func coerceChoices(v any) []any {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	return list
}

// MatchChoice returns the offered choice equal to chosen ignoring case and trailing
// punctuation, or the trimmed chosen text when nothing matches.
func MatchChoice(offered []string, chosen string) string {
	c := cleanChoice(chosen)
	for _, o := range offered {
		if strings.EqualFold(cleanChoice(o), c) {
			return o
		}
	}
	return strings.TrimSpace(chosen)
}
