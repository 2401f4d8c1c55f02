// Package rerank implements the second retrieval stage: every lexical
// candidate is judged by a language model and re-ordered by a blend of both
// scores.
package rerank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	_ "embed"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/youthguide-na/opportunity-finder/internal/ai"
	"github.com/youthguide-na/opportunity-finder/internal/metrics"
	"github.com/youthguide-na/opportunity-finder/internal/opportunity"
	"github.com/youthguide-na/opportunity-finder/internal/utils"
)

const (
	DefaultTopK        = 5
	DefaultMinScore    = 30
	DefaultTimeout     = 15 * time.Second
	DefaultConcurrency = 8

	maxDescriptionLen = 1500
)

var ErrGeneratorRequired = errors.New("generator is required")

//go:embed system_prompt.md
var systemPrompt string

//go:embed user_prompt.md
var userPromptTemplate string

// Options of a single rerank pass. Zero values take the defaults.
type Options struct {
	TopK     int
	MinScore float64
	Profile  *opportunity.Profile
}

func (o Options) withDefaults() Options {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.MinScore <= 0 {
		o.MinScore = DefaultMinScore
	}
	return o
}

type Reranker struct {
	generator ai.Generator
	pool      *ants.Pool
	timeout   time.Duration
	blend     Blend
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

type Option func(*Reranker) error

// WithConcurrency bounds the number of model calls in flight.
func WithConcurrency(size int) Option {
	return func(r *Reranker) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if r.pool != nil {
			r.pool.Release()
		}
		r.pool = pool
		return nil
	}
}

// WithTimeout sets the deadline of a single model call.
func WithTimeout(d time.Duration) Option {
	return func(r *Reranker) error {
		if d > 0 {
			r.timeout = d
		}
		return nil
	}
}

func WithBlend(b Blend) Option {
	return func(r *Reranker) error {
		if !b.isZero() {
			r.blend = b
		}
		return nil
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Reranker) error {
		if logger != nil {
			r.logger = logger
		}
		return nil
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reranker) error {
		r.metrics = m
		return nil
	}
}

// New creates a reranker. Call Release when it is no longer needed.
func New(generator ai.Generator, opts ...Option) (*Reranker, error) {
	if generator == nil {
		return nil, ErrGeneratorRequired
	}

	pool, err := ants.NewPool(DefaultConcurrency)
	if err != nil {
		return nil, err
	}

	r := &Reranker{
		generator: generator,
		pool:      pool,
		timeout:   DefaultTimeout,
		blend:     DefaultBlend(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			r.Release()
			return nil, err
		}
	}
	return r, nil
}

// Release stops the worker pool.
func (r *Reranker) Release() {
	if r.pool != nil {
		r.pool.Release()
	}
}

// Rerank judges every candidate and returns those whose relevance reaches
// MinScore, ordered by the blended score. Candidates must carry their
// lexical score in Score; it is kept in Stage1Score. When no candidate could
// be judged the lexical order is returned instead.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []opportunity.Ranked, opts Options) []opportunity.Ranked {
	defer r.metrics.ObserveStage(metrics.StageRerank, time.Now())
	opts = opts.withDefaults()

	if len(candidates) == 0 {
		return []opportunity.Ranked{}
	}

	verdicts, err := r.judgeAll(ctx, query, opts.Profile, candidates)
	if err == nil && allFailed(verdicts) {
		err = errors.New("no candidate could be judged")
	}
	if err != nil {
		r.logger.Warn("rerank failed, keeping lexical order", zap.Error(err))
		r.metrics.RerankFallback()
		return lexicalOrder(candidates, opts.TopK)
	}

	ranked := make([]opportunity.Ranked, 0, len(candidates))
	for i, c := range candidates {
		v := verdicts[i]
		r.metrics.RerankVerdict(v.Outcome())

		c.Stage1Score = c.Score
		c.RelevanceScore = v.Relevance()
		c.Reasoning = v.Reasoning()
		c.FinalScore = r.blend.Combine(c.RelevanceScore, c.Stage1Score)
		c.Score = c.FinalScore

		if c.RelevanceScore < opts.MinScore {
			continue
		}
		ranked = append(ranked, c)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].FinalScore > ranked[j].FinalScore
	})
	if len(ranked) > opts.TopK {
		ranked = ranked[:opts.TopK]
	}

	r.logger.Debug("rerank done",
		zap.Int("candidates", len(candidates)),
		zap.Int("kept", len(ranked)),
	)
	return ranked
}

func (r *Reranker) judgeAll(ctx context.Context, query string, profile *opportunity.Profile, candidates []opportunity.Ranked) ([]Verdict, error) {
	verdicts := make([]Verdict, len(candidates))
	summary := profile.Summary()

	var wg sync.WaitGroup
	var submitErr error
	for i := range candidates {
		wg.Add(1)
		err := r.pool.Submit(func() {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					verdicts[i] = Failed{Err: fmt.Errorf("panic: %v", p)}
				}
			}()
			verdicts[i] = r.judge(ctx, query, summary, &candidates[i].Opportunity)
		})
		if err != nil {
			wg.Done()
			submitErr = fmt.Errorf("submit rerank task: %w", err)
			break
		}
	}
	wg.Wait()

	if submitErr != nil {
		return nil, submitErr
	}
	return verdicts, nil
}

type generation struct {
	raw string
	err error
}

// judge asks the model about one candidate. The call is abandoned when the
// per-call timeout expires even if the generator ignores its context.
func (r *Reranker) judge(ctx context.Context, query, profileSummary string, o *opportunity.Opportunity) Verdict {
	prompt, err := buildUserPrompt(query, profileSummary, o)
	if err != nil {
		return Failed{Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan generation, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- generation{err: fmt.Errorf("generator panic: %v", p)}
			}
		}()
		raw, err := r.generator.GenerateContent(callCtx, systemPrompt, prompt)
		done <- generation{raw: raw, err: err}
	}()

	var v Verdict
	select {
	case <-callCtx.Done():
		v = Failed{Err: callCtx.Err()}
	case res := <-done:
		if res.err != nil {
			v = Failed{Err: res.err}
		} else {
			v = parseVerdict(res.raw)
		}
	}

	fields := []zap.Field{
		zap.String("opportunity_id", o.ID),
		zap.String("outcome", v.Outcome()),
		zap.Float64("relevance", v.Relevance()),
	}
	if failed, ok := v.(Failed); ok {
		r.logger.Warn("relevance call failed", append(fields, zap.Error(failed.Err))...)
	} else {
		r.logger.Debug("relevance verdict", fields...)
	}
	return v
}

func buildUserPrompt(query, profileSummary string, o *opportunity.Opportunity) (string, error) {
	payload := map[string]string{
		"title":        o.Title,
		"organization": o.Organization,
		"type":         string(o.Type),
		"location":     o.Location,
		"description":  utils.TruncateForLog(o.Description, maxDescriptionLen),
		"date_posted":  o.DatePosted,
		"source":       o.Source,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal opportunity payload: %w", err)
	}

	prompt := strings.ReplaceAll(userPromptTemplate, "{{QUERY}}", strings.TrimSpace(query))
	prompt = strings.ReplaceAll(prompt, "{{PROFILE}}", profileSummary)
	prompt = strings.ReplaceAll(prompt, "{{OPPORTUNITY_JSON}}", string(data))
	return prompt, nil
}

func allFailed(verdicts []Verdict) bool {
	for _, v := range verdicts {
		if _, ok := v.(Failed); !ok {
			return false
		}
	}
	return true
}

// lexicalOrder returns a copy of candidates sorted by their lexical score.
func lexicalOrder(candidates []opportunity.Ranked, k int) []opportunity.Ranked {
	out := make([]opportunity.Ranked, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}
