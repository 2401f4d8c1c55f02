package ai

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when a model answers with no text at all.
var ErrEmptyResponse = errors.New("model returned empty response")

// Generator sends a system instruction and a user message to a language
// model and returns its free-form text answer. Implementations must be safe
// for concurrent use.
type Generator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Model() string
}

// Provider names accepted in configuration.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)
