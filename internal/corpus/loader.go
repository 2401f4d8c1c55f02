package corpus

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/youthguide-na/opportunity-finder/internal/filtering"
	"github.com/youthguide-na/opportunity-finder/internal/metrics"
	"github.com/youthguide-na/opportunity-finder/internal/opportunity"
)

// Dataset selects the backing store of a load.
type Dataset string

const (
	Primary  Dataset = "primary"
	Fallback Dataset = "fallback"
)

const (
	DefaultTTL           = 5 * time.Minute
	DefaultFailureTTL    = 5 * time.Second
	DefaultReadTimeout   = 30 * time.Second
	DefaultExampleSource = "Example Website"
)

var ErrUnknownDataset = errors.New("unknown dataset")

// ParseDataset validates a dataset key coming from configuration or callers.
func ParseDataset(s string) (Dataset, error) {
	switch d := Dataset(s); d {
	case Primary, Fallback:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDataset, s)
	}
}

// Snapshot is an immutable view of one loaded corpus. Callers must not
// modify Items.
type Snapshot struct {
	Dataset     Dataset
	LoadedAt    time.Time
	LastUpdated string
	Sources     []string
	Items       []opportunity.Opportunity

	// failed marks the empty snapshot served after a read failure.
	failed bool
}

// Opportunities wraps the snapshot records for the filtering steps.
func (s *Snapshot) Opportunities() *opportunity.Opportunities {
	return &opportunity.Opportunities{Items: s.Items}
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Items)
}

// Loader caches the last loaded snapshot. A cache hit requires both a fresh
// snapshot and the same dataset; loading another dataset replaces the slot.
type Loader struct {
	stores      map[Dataset]Store
	ttl         time.Duration
	failureTTL  time.Duration
	readTimeout time.Duration
	excluded    []string
	now      func() time.Time
	logger   *zap.Logger
	metrics  *metrics.Metrics

	cache atomic.Pointer[Snapshot]
	// generation is bumped by Invalidate so that reloads started before it
	// do not repopulate the cache.
	generation atomic.Uint64
	group      singleflight.Group
}

// Option configures a Loader.
type Option func(*Loader)

func WithTTL(ttl time.Duration) Option {
	return func(l *Loader) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithFailureTTL sets how long the empty result of a failed read is served
// before the store is tried again.
func WithFailureTTL(ttl time.Duration) Option {
	return func(l *Loader) {
		if ttl > 0 {
			l.failureTTL = ttl
		}
	}
}

// WithReadTimeout bounds a single store read.
func WithReadTimeout(d time.Duration) Option {
	return func(l *Loader) {
		if d > 0 {
			l.readTimeout = d
		}
	}
}

// WithExcludedSources replaces the sources dropped from the primary dataset.
func WithExcludedSources(sources ...string) Option {
	return func(l *Loader) {
		l.excluded = sources
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Loader) {
		if now != nil {
			l.now = now
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loader) {
		l.metrics = m
	}
}

// NewLoader creates a loader over the primary store and an optional
// fallback store.
func NewLoader(primary, fallback Store, opts ...Option) *Loader {
	l := &Loader{
		stores:      map[Dataset]Store{},
		ttl:         DefaultTTL,
		failureTTL:  DefaultFailureTTL,
		readTimeout: DefaultReadTimeout,
		excluded:    []string{DefaultExampleSource},
		now:         time.Now,
		logger:      zap.NewNop(),
	}
	if primary != nil {
		l.stores[Primary] = primary
	}
	if fallback != nil {
		l.stores[Fallback] = fallback
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the cached snapshot of dataset or reads it from its store.
// Store failures are logged and produce an empty snapshot that is kept for
// the failure TTL only. Concurrent callers share one read, which runs
// detached from their contexts; a caller whose ctx ends first gets ctx.Err().
// Apart from that only an unknown dataset is reported as an error.
func (l *Loader) Load(ctx context.Context, dataset Dataset) (*Snapshot, error) {
	store, ok := l.stores[dataset]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataset, dataset)
	}

	if snap := l.cached(dataset); snap != nil {
		l.metrics.CacheLookup(string(dataset), true)
		return snap, nil
	}
	l.metrics.CacheLookup(string(dataset), false)

	ch := l.group.DoChan(string(dataset), func() (any, error) {
		if snap := l.cached(dataset); snap != nil {
			return snap, nil
		}
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.readTimeout)
		defer cancel()
		return l.reload(readCtx, dataset, store), nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val.(*Snapshot), nil
	}
}

// Invalidate drops the cached snapshot. The next Load reads the store.
func (l *Loader) Invalidate() {
	l.generation.Add(1)
	l.cache.Store(nil)
	l.logger.Info("corpus cache invalidated")
}

func (l *Loader) cached(dataset Dataset) *Snapshot {
	snap := l.cache.Load()
	if snap == nil || snap.Dataset != dataset {
		return nil
	}
	ttl := l.ttl
	if snap.failed {
		ttl = l.failureTTL
	}
	if l.now().Sub(snap.LoadedAt) >= ttl {
		return nil
	}
	return snap
}

func (l *Loader) reload(ctx context.Context, dataset Dataset, store Store) *Snapshot {
	start := time.Now()
	defer l.metrics.ObserveStage(metrics.StageLoad, start)

	generation := l.generation.Load()
	log := l.logger.With(zap.String("dataset", string(dataset)), zap.String("store", store.Name()))

	doc, err := store.Load(ctx)
	if err != nil {
		log.Warn("failed to read corpus, serving empty result", zap.Error(err))
		return l.failed(dataset, generation)
	}

	items, err := l.prepare(ctx, dataset, doc.Opportunities)
	if err != nil {
		log.Warn("failed to prepare corpus, serving empty result", zap.Error(err))
		return l.failed(dataset, generation)
	}

	snap := &Snapshot{
		Dataset:     dataset,
		LoadedAt:    l.now(),
		LastUpdated: doc.LastUpdated,
		Sources:     doc.Sources,
		Items:       items,
	}

	if l.generation.Load() == generation {
		l.cache.Store(snap)
	}
	l.metrics.SetCorpusSize(string(dataset), len(items))
	log.Info("corpus loaded",
		zap.Int("records", len(items)),
		zap.Int("read", len(doc.Opportunities)),
		zap.String("last_updated", doc.LastUpdated),
	)
	return snap
}

// failed caches an empty snapshot that expires after the failure TTL.
func (l *Loader) failed(dataset Dataset, generation uint64) *Snapshot {
	l.metrics.CorpusLoadError(string(dataset))
	snap := &Snapshot{Dataset: dataset, LoadedAt: l.now(), failed: true}
	if l.generation.Load() == generation {
		l.cache.Store(snap)
	}
	return snap
}

func (l *Loader) prepare(ctx context.Context, dataset Dataset, items []opportunity.Opportunity) ([]opportunity.Opportunity, error) {
	steps := []filtering.Filter{filtering.NewValid()}
	if dataset == Primary {
		steps = append(steps, filtering.NewExcludedSources(l.excluded, l.logger))
	}

	f := filtering.New(steps, l.logger)
	for _, status := range f.Describe() {
		l.logger.Debug("corpus filter",
			zap.String("filter", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.String("reason", status.Reason),
			zap.Any("details", status.Details),
		)
	}

	kept, err := f.RunFilters(ctx, &opportunity.Opportunities{Items: items})
	if err != nil {
		return nil, err
	}
	return opportunity.Dedupe(kept.Items), nil
}
