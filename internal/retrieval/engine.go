// Package retrieval runs the hybrid search: lexical candidate selection
// followed by model based reranking.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/youthguide-na/opportunity-finder/internal/corpus"
	"github.com/youthguide-na/opportunity-finder/internal/lexical"
	"github.com/youthguide-na/opportunity-finder/internal/logger"
	"github.com/youthguide-na/opportunity-finder/internal/metrics"
	"github.com/youthguide-na/opportunity-finder/internal/opportunity"
	"github.com/youthguide-na/opportunity-finder/internal/rerank"
)

var (
	ErrLoaderRequired = errors.New("corpus loader is required")
	ErrScorerRequired = errors.New("lexical scorer is required")
)

// Retrieval modes, used as metric labels.
const (
	ModeOffline = "offline"
	ModeLexical = "lexical"
	ModeHybrid  = "hybrid"
)

type Loader interface {
	Load(ctx context.Context, dataset corpus.Dataset) (*corpus.Snapshot, error)
}

type Scorer interface {
	Score(ctx context.Context, query string, candidates []opportunity.Opportunity, opts lexical.Options) ([]opportunity.Ranked, error)
}

type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []opportunity.Ranked, opts rerank.Options) []opportunity.Ranked
}

// Defaults are applied to zero fields of Options.
type Defaults struct {
	TopK           int     `mapstructure:"top-k"`
	MinScore       float64 `mapstructure:"min-score"`
	Stage1TopK     int     `mapstructure:"stage1-top-k"`
	Stage2MinScore float64 `mapstructure:"stage2-min-score"`
}

func DefaultDefaults() Defaults {
	return Defaults{
		TopK:           lexical.DefaultTopK,
		MinScore:       lexical.DefaultMinScore,
		Stage1TopK:     20,
		Stage2MinScore: rerank.DefaultMinScore,
	}
}

// Options of a single retrieval call.
type Options struct {
	TopK           int
	MinScore       float64
	Stage1TopK     int
	Stage2MinScore float64
	Profile        *opportunity.Profile
	FilterTypes    []opportunity.Type
	FilterLocation string
}

// Result is the envelope returned to the request handling layer.
type Result struct {
	Opportunities []opportunity.Ranked `json:"opportunities"`
	IsOffline     bool                 `json:"isOffline"`
	UsedAI        bool                 `json:"usedAI"`
	DataSource    string               `json:"dataSource"`

	RetrievalID string `json:"-"`
}

type Engine struct {
	loader   Loader
	scorer   Scorer
	reranker Reranker
	defaults Defaults
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

type Option func(*Engine)

// WithReranker enables the second stage. Without it normal retrievals
// return the lexical ranking.
func WithReranker(r Reranker) Option {
	return func(e *Engine) {
		e.reranker = r
	}
}

func WithDefaults(d Defaults) Option {
	return func(e *Engine) {
		fallback := DefaultDefaults()
		if d.TopK <= 0 {
			d.TopK = fallback.TopK
		}
		if d.MinScore <= 0 {
			d.MinScore = fallback.MinScore
		}
		if d.Stage1TopK <= 0 {
			d.Stage1TopK = fallback.Stage1TopK
		}
		if d.Stage2MinScore <= 0 {
			d.Stage2MinScore = fallback.Stage2MinScore
		}
		e.defaults = d
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func New(loader Loader, scorer Scorer, opts ...Option) (*Engine, error) {
	if loader == nil {
		return nil, ErrLoaderRequired
	}
	if scorer == nil {
		return nil, ErrScorerRequired
	}

	e := &Engine{
		loader:   loader,
		scorer:   scorer,
		defaults: DefaultDefaults(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Retrieve ranks the corpus for query. In offline mode the fallback
// dataset is searched with the lexical stage only; the dataset choice is
// scoped to this call. Loader and lexical errors are returned as is, while
// reranking problems degrade to the lexical order.
func (e *Engine) Retrieve(ctx context.Context, query string, opts Options, offline bool) (*Result, error) {
	defer e.metrics.ObserveStage(metrics.StageRetrieve, time.Now())
	opts = e.withDefaults(opts)

	dataset := corpus.Primary
	if offline {
		dataset = corpus.Fallback
	}
	id := uuid.NewString()
	log := logger.WithRetrieval(e.logger, id, string(dataset))

	snap, err := e.loader.Load(ctx, dataset)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}

	result := &Result{
		IsOffline:   offline,
		DataSource:  string(dataset),
		RetrievalID: id,
	}

	mode := ModeHybrid
	switch {
	case offline:
		mode = ModeOffline
	case e.reranker == nil:
		mode = ModeLexical
	}
	e.metrics.Retrieval(mode)

	stage1 := e.lexicalOptions(opts)
	if mode == ModeHybrid {
		stage1.TopK = opts.Stage1TopK
	}

	candidates, err := e.scorer.Score(ctx, query, snap.Items, stage1)
	if err != nil {
		return nil, fmt.Errorf("lexical scoring: %w", err)
	}

	if mode != ModeHybrid {
		result.Opportunities = candidates
		log.Info("retrieval done",
			zap.String("mode", mode),
			zap.Int("corpus", snap.Len()),
			zap.Int("results", len(candidates)),
		)
		return result, nil
	}

	result.UsedAI = true
	result.Opportunities = e.reranker.Rerank(ctx, query, candidates, rerank.Options{
		TopK:     opts.TopK,
		MinScore: opts.Stage2MinScore,
		Profile:  opts.Profile,
	})
	log.Info("retrieval done",
		zap.String("mode", mode),
		zap.Int("corpus", snap.Len()),
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(result.Opportunities)),
	)
	return result, nil
}

func (e *Engine) withDefaults(opts Options) Options {
	if opts.TopK <= 0 {
		opts.TopK = e.defaults.TopK
	}
	if opts.MinScore <= 0 {
		opts.MinScore = e.defaults.MinScore
	}
	if opts.Stage1TopK <= 0 {
		opts.Stage1TopK = e.defaults.Stage1TopK
	}
	if opts.Stage2MinScore <= 0 {
		opts.Stage2MinScore = e.defaults.Stage2MinScore
	}
	return opts
}

func (e *Engine) lexicalOptions(opts Options) lexical.Options {
	return lexical.Options{
		TopK:           opts.TopK,
		MinScore:       opts.MinScore,
		Profile:        opts.Profile,
		FilterTypes:    opts.FilterTypes,
		FilterLocation: opts.FilterLocation,
	}
}
