package opportunity

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

const defaultLocation = "Namibia"

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Abbreviations used by the job boards for the main towns.
var locationAbbreviations = []struct {
	abbr string
	full string
}{
	{"whk", "Windhoek"},
	{"wdh", "Windhoek"},
	{"swk", "Swakopmund"},
	{"wal", "Walvis Bay"},
	{"osh", "Oshakati"},
	{"run", "Rundu"},
	{"kat", "Katima Mulilo"},
}

var typeKeywords = []struct {
	t     Type
	words []string
}{
	{TypeInternship, []string{"internship", "intern"}},
	{TypeScholarship, []string{"scholarship", "bursary", "grant"}},
	{TypeTraining, []string{"training", "course", "workshop", "program", "programme", "certification"}},
}

// CleanText strips leftover markup and collapses whitespace.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	s = htmlTagRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.ReplaceAll(s, "\r", "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// InferType guesses the opportunity type from free text. Job is the default.
func InferType(text string) Type {
	lower := strings.ToLower(text)
	for _, tk := range typeKeywords {
		for _, w := range tk.words {
			if strings.Contains(lower, w) {
				return tk.t
			}
		}
	}
	return TypeJob
}

// FormatLocation expands known abbreviations and defaults to the country.
func FormatLocation(location string) string {
	cleaned := CleanText(location)
	if cleaned == "" {
		return defaultLocation
	}
	lower := strings.ToLower(cleaned)
	for _, a := range locationAbbreviations {
		if strings.Contains(lower, a.abbr) {
			return a.full
		}
	}
	return cleaned
}

// GenerateID derives a stable identifier from source, title and url.
func GenerateID(title, source, url string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(source + "_" + title + "_" + url)))
	return hex.EncodeToString(sum[:])[:16]
}

// Normalize cleans every text field and fills in defaults.
func Normalize(o Opportunity) Opportunity {
	o.Title = CleanText(o.Title)
	o.Description = CleanText(o.Description)
	o.Organization = CleanText(o.Organization)
	o.Source = CleanText(o.Source)
	o.URL = strings.TrimSpace(o.URL)
	o.DatePosted = strings.TrimSpace(o.DatePosted)
	o.Location = FormatLocation(o.Location)

	if t, ok := ParseType(string(o.Type)); ok {
		o.Type = t
	} else {
		o.Type = InferType(o.Title + " " + o.Description)
	}

	o.ID = strings.TrimSpace(o.ID)
	if o.ID == "" {
		o.ID = GenerateID(o.Title, o.Source, o.URL)
	}
	return o
}

// IsValid reports whether the record carries the minimum required data.
func IsValid(o Opportunity) bool {
	return strings.TrimSpace(o.Title) != "" && strings.TrimSpace(o.Source) != ""
}

// Dedupe keeps the first record of every id.
func Dedupe(items []Opportunity) []Opportunity {
	seen := make(map[string]struct{}, len(items))
	unique := make([]Opportunity, 0, len(items))
	for _, o := range items {
		if o.ID == "" {
			continue
		}
		if _, ok := seen[o.ID]; ok {
			continue
		}
		seen[o.ID] = struct{}{}
		unique = append(unique, o)
	}
	return unique
}
