package opportunity

import (
	"fmt"
	"strings"
)

// Profile is the optional caller-supplied description of the user.
type Profile struct {
	Skills         []string `json:"skills,omitempty" mapstructure:"skills"`
	Interests      []string `json:"interests,omitempty" mapstructure:"interests"`
	Location       string   `json:"location,omitempty" mapstructure:"location"`
	PreferredTypes []string `json:"preferredTypes,omitempty" mapstructure:"preferred-types"`
}

func (p *Profile) IsZero() bool {
	if p == nil {
		return true
	}
	return len(p.Skills) == 0 && len(p.Interests) == 0 &&
		strings.TrimSpace(p.Location) == "" && len(p.PreferredTypes) == 0
}

// Terms returns the non-empty lowercased skills followed by interests.
func (p *Profile) Terms() []string {
	if p == nil {
		return nil
	}
	terms := make([]string, 0, len(p.Skills)+len(p.Interests))
	for _, group := range [][]string{p.Skills, p.Interests} {
		for _, term := range group {
			term = strings.ToLower(strings.TrimSpace(term))
			if term != "" {
				terms = append(terms, term)
			}
		}
	}
	return terms
}

// Prefers reports whether t is one of the preferred types.
func (p *Profile) Prefers(t Type) bool {
	if p == nil {
		return false
	}
	for _, pt := range p.PreferredTypes {
		if strings.EqualFold(strings.TrimSpace(pt), string(t)) {
			return true
		}
	}
	return false
}

// Summary renders the profile as a short multi-line block for prompts.
func (p *Profile) Summary() string {
	if p.IsZero() {
		return "No profile provided."
	}
	orNone := func(values []string) string {
		if len(values) == 0 {
			return "not specified"
		}
		return strings.Join(values, ", ")
	}
	location := strings.TrimSpace(p.Location)
	if location == "" {
		location = "not specified"
	}
	return fmt.Sprintf("Skills: %s\nInterests: %s\nLocation: %s\nPreferred types: %s",
		orNone(p.Skills), orNone(p.Interests), location, orNone(p.PreferredTypes))
}
