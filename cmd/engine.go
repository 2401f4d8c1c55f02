package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/youthguide-na/opportunity-finder/internal/ai"
	"github.com/youthguide-na/opportunity-finder/internal/ai/gemini"
	"github.com/youthguide-na/opportunity-finder/internal/ai/openai"
	"github.com/youthguide-na/opportunity-finder/internal/corpus"
	"github.com/youthguide-na/opportunity-finder/internal/lexical"
	"github.com/youthguide-na/opportunity-finder/internal/logger"
	"github.com/youthguide-na/opportunity-finder/internal/metrics"
	"github.com/youthguide-na/opportunity-finder/internal/rerank"
	"github.com/youthguide-na/opportunity-finder/internal/retrieval"
	"github.com/youthguide-na/opportunity-finder/internal/secrets"
)

// components holds everything a command needs to run retrievals.
type components struct {
	engine *retrieval.Engine
	loader *corpus.Loader
	redis  *redis.Client

	release []func()
}

func (c *components) Close() {
	for i := len(c.release) - 1; i >= 0; i-- {
		c.release[i]()
	}
}

func buildComponents(ctx context.Context, config *Config, log *zap.Logger, m *metrics.Metrics) (*components, error) {
	c := &components{}

	if config.Redis != nil && strings.TrimSpace(config.Redis.URL) != "" {
		client, err := corpus.NewRedisClient(ctx, config.Redis.URL)
		if err != nil {
			return nil, err
		}
		c.redis = client
		c.release = append(c.release, func() { client.Close() })
	}

	primary, fallback, err := buildStores(config, c.redis)
	if err != nil {
		c.Close()
		return nil, err
	}

	loaderOpts := []corpus.Option{
		corpus.WithLogger(log.Named("corpus")),
		corpus.WithMetrics(m),
	}
	if config.Data != nil {
		loaderOpts = append(loaderOpts,
			corpus.WithTTL(config.Data.CacheTTL),
			corpus.WithFailureTTL(config.Data.FailureTTL),
			corpus.WithReadTimeout(config.Data.ReadTimeout),
			corpus.WithExcludedSources(config.Data.ExcludedSources...),
		)
	}
	c.loader = corpus.NewLoader(primary, fallback, loaderOpts...)

	scorer := lexical.NewScorer(
		lexical.WithLogger(log.Named("lexical")),
		lexical.WithMetrics(m),
	)

	engineOpts := []retrieval.Option{
		retrieval.WithDefaults(config.Retrieval),
		retrieval.WithLogger(log.Named("retrieval")),
		retrieval.WithMetrics(m),
	}

	if config.AI != nil && config.AI.Enabled {
		reranker, err := newReranker(ctx, config.AI, log, m)
		if err != nil {
			log.Warn("relevance model is not available, using lexical ranking only", zap.Error(err))
		} else {
			c.release = append(c.release, reranker.Release)
			engineOpts = append(engineOpts, retrieval.WithReranker(reranker))
		}
	}

	c.engine, err = retrieval.New(c.loader, scorer, engineOpts...)
	if err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func buildStores(config *Config, client *redis.Client) (corpus.Store, corpus.Store, error) {
	data := config.Data
	if data == nil {
		data = &DataConfig{}
	}

	var primary, fallback corpus.Store
	switch {
	case client != nil && config.Redis.PrimaryKey != "":
		primary = corpus.NewRedisStore(client, config.Redis.PrimaryKey)
	case data.PrimaryFile != "":
		primary = corpus.NewFileStore(data.PrimaryFile)
	default:
		return nil, nil, fmt.Errorf("no primary data source configured (set data.primary-file or redis.primary-key)")
	}

	if data.FallbackFile != "" {
		fallback = corpus.NewFileStore(data.FallbackFile)
	}
	return primary, fallback, nil
}

func newReranker(ctx context.Context, cfg *AIConfig, log *zap.Logger, m *metrics.Metrics) (*rerank.Reranker, error) {
	generator, err := newGenerator(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	rerankLogger := logger.WithCommonFields(log.Named("rerank"), strings.ToLower(cfg.Provider), generator.Model())

	return rerank.New(generator,
		rerank.WithConcurrency(cfg.Concurrency),
		rerank.WithTimeout(cfg.Timeout),
		rerank.WithBlend(cfg.Blend),
		rerank.WithLogger(rerankLogger),
		rerank.WithMetrics(m),
	)
}

func newGenerator(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.Generator, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))

	switch provider {
	case "", ai.ProviderGemini:
		gc := cfg.Gemini
		if gc == nil {
			gc = &GeminiConfig{}
		}
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: gc.APIKey,
			File:  gc.APIKeyFile,
			Env:   "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
		}
		genLogger := logger.WithCommonFields(log, ai.ProviderGemini, gc.Model).
			With(zap.Int("ai_retry_attempts", gc.MaxRetries))
		return gemini.NewGenerator(ctx, apiKey, gc.Model, gc.MaxRetries, genLogger)

	case ai.ProviderOpenAI:
		oc := cfg.OpenAI
		if oc == nil {
			oc = &OpenAIConfig{}
		}
		// Local OpenAI-compatible servers usually need no token.
		token, err := secrets.Load(secrets.Source{
			Name:  "openai token",
			Value: oc.Token,
			File:  oc.TokenFile,
			Env:   "OPENAI_API_KEY",
		})
		if err != nil && oc.TokenFile != "" {
			return nil, err
		}
		genLogger := logger.WithCommonFields(log, ai.ProviderOpenAI, oc.Model)
		return openai.NewGenerator(openai.Config{BaseURL: oc.BaseURL, Model: oc.Model, Token: token}, genLogger)

	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}
