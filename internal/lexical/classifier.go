package lexical

import (
	"strings"

	"github.com/youthguide-na/opportunity-finder/internal/opportunity"
)

// Classifier holds the locale dependent parts of lexical scoring.
type Classifier interface {
	// IsGeneric reports whether the query tokens carry no discriminative
	// content beyond "I am looking for something of this category".
	IsGeneric(tokens []string) bool
	// TypeMultiplier returns the factor applied to a candidate of type t
	// when the query names that type. It returns 1 when nothing matches.
	TypeMultiplier(query string, t opportunity.Type) float64
}

// TypeRule boosts candidates of Type when the query contains Keyword.
type TypeRule struct {
	Keyword    string
	Type       opportunity.Type
	Multiplier float64
}

// KeywordClassifier is a Classifier driven by plain keyword lists.
type KeywordClassifier struct {
	IntentTerms      []string
	CategoryTerms    []string
	MaxGenericTokens int
	TypeRules        []TypeRule
}

// English returns the classifier for English queries.
func English() *KeywordClassifier {
	return &KeywordClassifier{
		IntentTerms:      []string{"looking", "find", "want", "need", "search"},
		CategoryTerms:    []string{"job", "jobs", "training", "internship", "scholarship", "opportunity", "opportunities"},
		MaxGenericTokens: 5,
		TypeRules: []TypeRule{
			{Keyword: "training", Type: opportunity.TypeTraining, Multiplier: 2.0},
			{Keyword: "internship", Type: opportunity.TypeInternship, Multiplier: 2.0},
			{Keyword: "scholarship", Type: opportunity.TypeScholarship, Multiplier: 2.0},
			{Keyword: "bursary", Type: opportunity.TypeScholarship, Multiplier: 2.0},
			{Keyword: "job", Type: opportunity.TypeJob, Multiplier: 1.3},
			{Keyword: "position", Type: opportunity.TypeJob, Multiplier: 1.3},
		},
	}
}

func (c *KeywordClassifier) IsGeneric(tokens []string) bool {
	if len(tokens) == 0 || len(tokens) > c.MaxGenericTokens {
		return false
	}
	return containsAny(tokens, c.IntentTerms) && containsAny(tokens, c.CategoryTerms)
}

// TypeMultiplier applies the first rule whose keyword occurs in the query
// and whose type equals t.
func (c *KeywordClassifier) TypeMultiplier(query string, t opportunity.Type) float64 {
	lower := strings.ToLower(query)
	for _, rule := range c.TypeRules {
		if rule.Type == t && strings.Contains(lower, rule.Keyword) {
			return rule.Multiplier
		}
	}
	return 1
}

func containsAny(tokens, terms []string) bool {
	for _, tok := range tokens {
		for _, term := range terms {
			if tok == term {
				return true
			}
		}
	}
	return false
}
