// Package lexical implements the first retrieval stage: hard filters,
// TF-IDF cosine similarity and profile driven boosts.
package lexical

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/youthguide-na/opportunity-finder/internal/filtering"
	"github.com/youthguide-na/opportunity-finder/internal/metrics"
	"github.com/youthguide-na/opportunity-finder/internal/opportunity"
)

const (
	DefaultTopK     = 5
	DefaultMinScore = 0.01

	// Above this boost a candidate without lexical overlap still gets a
	// synthetic base score.
	strongBoost     = 1.2
	syntheticFactor = 0.3
)

// Options of a single scoring pass. Zero TopK and MinScore take defaults.
type Options struct {
	TopK           int
	MinScore       float64
	Profile        *opportunity.Profile
	FilterTypes    []opportunity.Type
	FilterLocation string
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

// Scorer ranks candidates against a query.
type Scorer struct {
	classifier Classifier
	now        func() time.Time
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

type Option func(*Scorer)

func WithClassifier(c Classifier) Option {
	return func(s *Scorer) {
		if c != nil {
			s.classifier = c
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scorer) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Scorer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scorer) {
		s.metrics = m
	}
}

func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		classifier: English(),
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score ranks candidates for query. An empty result is a valid outcome: it
// is returned for a query without usable tokens, for candidates filtered
// down to nothing, and when no candidate reaches MinScore. Only invalid
// filter options are reported as errors.
func (s *Scorer) Score(ctx context.Context, query string, candidates []opportunity.Opportunity, opts Options) ([]opportunity.Ranked, error) {
	defer s.metrics.ObserveStage(metrics.StageLexical, time.Now())
	opts = opts.withDefaults()

	filtered, err := filtering.New([]filtering.Filter{
		filtering.NewTypes(opts.FilterTypes),
		filtering.NewLocation(opts.FilterLocation),
	}, s.logger).RunFilters(ctx, &opportunity.Opportunities{Items: candidates})
	if err != nil {
		return nil, err
	}
	if filtered.Len() == 0 {
		return []opportunity.Ranked{}, nil
	}

	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return []opportunity.Ranked{}, nil
	}

	now := s.now()
	if s.classifier.IsGeneric(tokens) {
		s.logger.Debug("generic query, ranking by recency and profile", zap.Strings("tokens", tokens))
		return truncate(rankGeneric(filtered.Items, opts.Profile, now), opts.TopK), nil
	}

	semantic := similarities(tokens, filtered.Items, documentFields{
		location: strings.TrimSpace(opts.FilterLocation) == "",
		typ:      len(opts.FilterTypes) == 0,
	})

	ranked := make([]opportunity.Ranked, 0, len(filtered.Items))
	for i, o := range filtered.Items {
		boost := ProfileBoost(&o, opts.Profile, now)
		dbg := opportunity.Debug{SemanticScore: semantic[i], ProfileBoost: boost}

		var score float64
		switch {
		case semantic[i] > 0:
			score = semantic[i] * boost
		case boost > strongBoost:
			score = (boost - 1) * syntheticFactor
			dbg.Synthetic = true
		}

		dbg.TypeMultiplier = s.classifier.TypeMultiplier(query, o.Type)
		score *= dbg.TypeMultiplier

		if score < opts.MinScore {
			continue
		}
		ranked = append(ranked, opportunity.Ranked{Opportunity: o, Score: score, Debug: dbg})
	}

	sortByScore(ranked)
	s.logger.Debug("lexical scoring done",
		zap.Int("candidates", len(filtered.Items)),
		zap.Int("above_min_score", len(ranked)),
	)
	return truncate(ranked, opts.TopK), nil
}

func rankGeneric(items []opportunity.Opportunity, profile *opportunity.Profile, now time.Time) []opportunity.Ranked {
	ranked := make([]opportunity.Ranked, 0, len(items))
	for _, o := range items {
		tier := RecencyTier(&o, now)
		boost := ProfileBoost(&o, profile, now)
		ranked = append(ranked, opportunity.Ranked{
			Opportunity: o,
			Score:       tier * boost,
			Debug: opportunity.Debug{
				Generic:      true,
				ProfileBoost: boost,
				RecencyTier:  tier,
			},
		})
	}
	sortByScore(ranked)
	return ranked
}

// documentFields selects the optional dimensions of the document text. A
// dimension already enforced by a hard filter is left out.
type documentFields struct {
	location bool
	typ      bool
}

func documentText(o *opportunity.Opportunity, f documentFields) string {
	parts := []string{o.Title, o.Description, o.Organization, o.Source}
	if f.location {
		parts = append(parts, o.Location)
	}
	if f.typ {
		parts = append(parts, string(o.Type))
	}
	return strings.Join(parts, " ")
}

// similarities returns the cosine similarity of the query to every item.
// The query takes part in the document frequencies.
func similarities(queryTokens []string, items []opportunity.Opportunity, f documentFields) []float64 {
	tfs := make([]vector, 0, len(items)+1)
	for i := range items {
		tfs = append(tfs, termFrequency(Tokenize(documentText(&items[i], f))))
	}
	queryTF := termFrequency(queryTokens)
	idf := inverseDocumentFrequency(append(tfs, queryTF))

	queryVec := weigh(queryTF, idf)
	scores := make([]float64, len(items))
	for i, tf := range tfs {
		scores[i] = cosine(queryVec, weigh(tf, idf))
	}
	return scores
}

func sortByScore(ranked []opportunity.Ranked) {
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
}

func truncate(ranked []opportunity.Ranked, k int) []opportunity.Ranked {
	if len(ranked) > k {
		return ranked[:k]
	}
	return ranked
}
