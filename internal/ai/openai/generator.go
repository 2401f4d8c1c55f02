// Package openai implements ai.Generator on top of OpenAI-compatible chat
// APIs (OpenAI, Ollama, vLLM, LocalAI) through langchaingo.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/youthguide-na/opportunity-finder/internal/ai"
	"github.com/youthguide-na/opportunity-finder/internal/logger"
	"github.com/youthguide-na/opportunity-finder/internal/utils"
)

const (
	defaultBaseURL = "http://localhost:11434/v1"
	defaultModel   = "qwen2.5:3b"
	logPreviewLen  = 200
)

// Config holds the connection settings of the chat endpoint.
type Config struct {
	BaseURL string
	Model   string
	// Token may be left empty for local servers that do not authenticate.
	Token string
}

// Generator implements ai.Generator with a langchaingo chat model.
type Generator struct {
	client llms.Model
	model  string
	logger *zap.Logger
}

var _ ai.Generator = (*Generator)(nil)

// NewGenerator creates a generator for the configured endpoint. The base URL
// is normalised to end with /v1.
func NewGenerator(cfg Config, log *zap.Logger) (*Generator, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/v1") {
		baseURL = strings.TrimSuffix(baseURL, "/") + "/v1"
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		token = "none"
	}

	client, err := lcopenai.New(
		lcopenai.WithBaseURL(baseURL),
		lcopenai.WithToken(token),
		lcopenai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}

	return newGenerator(client, model, log), nil
}

func newGenerator(client llms.Model, model string, log *zap.Logger) *Generator {
	return &Generator{
		client: client,
		model:  model,
		logger: logger.WithCommonFields(log, ai.ProviderOpenAI, model),
	}
}

func (g *Generator) GenerateContent(ctx context.Context, system, message string) (string, error) {
	if g == nil || g.client == nil {
		return "", errors.New("openai generator is not initialized")
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return "", errors.New("prompt must not be empty")
	}

	content := make([]llms.MessageContent, 0, 2)
	if system = strings.TrimSpace(system); system != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, message))

	resp, err := g.client.GenerateContent(ctx, content, llms.WithTemperature(0.2), llms.WithJSONMode())
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	if resp == nil || len(resp.Choices) == 0 {
		return "", ai.ErrEmptyResponse
	}

	output := strings.TrimSpace(resp.Choices[0].Content)
	if output == "" {
		return "", ai.ErrEmptyResponse
	}

	g.logger.Debug("openai response",
		zap.Int("response_length", utf8.RuneCountInString(output)),
		zap.String("response_preview", utils.TruncateForLog(output, logPreviewLen)),
	)

	return output, nil
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}
