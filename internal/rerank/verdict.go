package rerank

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	neutralScore = 50

	malformedReasoning = "Relevance estimated from an unstructured model response."
	failedReasoning    = "Relevance could not be assessed, a neutral score was assigned."
)

// Outcome labels of the verdict variants.
const (
	OutcomeParsed    = "parsed"
	OutcomeMalformed = "malformed"
	OutcomeFailed    = "failed"
)

var (
	errNoScore = errors.New("model response contains no score")

	integerRe = regexp.MustCompile(`-?\d+`)
)

// Verdict is the relevance judgement of one candidate. It is one of
// Parsed, Malformed or Failed.
type Verdict interface {
	// Relevance is on a 0..100 scale.
	Relevance() float64
	Reasoning() string
	Outcome() string
}

// Parsed is a well-formed model answer.
type Parsed struct {
	Score  float64
	Reason string
}

func (v Parsed) Relevance() float64 { return v.Score }

func (v Parsed) Reasoning() string { return v.Reason }

func (v Parsed) Outcome() string { return OutcomeParsed }

// Malformed is an answer that was not the requested JSON but contained a
// number, taken as the score.
type Malformed struct {
	Score float64
	Raw   string
}

func (v Malformed) Relevance() float64 { return v.Score }

func (v Malformed) Reasoning() string { return malformedReasoning }

func (v Malformed) Outcome() string { return OutcomeMalformed }

// Failed is a call that produced no usable answer. It carries the neutral
// score.
type Failed struct {
	Err error
}

func (v Failed) Relevance() float64 { return neutralScore }

func (v Failed) Reasoning() string { return failedReasoning }

func (v Failed) Outcome() string { return OutcomeFailed }

// parseVerdict interprets the raw model answer.
func parseVerdict(raw string) Verdict {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err == nil {
		if score := coerceFloat(data["score"]); !math.IsNaN(score) {
			return Parsed{Score: clamp(score), Reason: coerceString(data["reasoning"])}
		}
	}

	match := integerRe.FindString(raw)
	if match == "" {
		return Failed{Err: errNoScore}
	}
	n, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return Failed{Err: fmt.Errorf("parse score %q: %w", match, err)}
	}
	return Malformed{Score: clamp(n), Raw: raw}
}

func clamp(score float64) float64 {
	return math.Max(0, math.Min(100, score))
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case nil:
		return ""
	default:
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
