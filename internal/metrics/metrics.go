// Package metrics holds the Prometheus collectors of the retrieval engine.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricCacheLookups     = "oppfinder_corpus_cache_lookups_total"
	MetricCorpusLoadErrors = "oppfinder_corpus_load_errors_total"
	MetricCorpusSize       = "oppfinder_corpus_records"
	MetricStageDuration    = "oppfinder_stage_duration_seconds"
	MetricRerankVerdicts   = "oppfinder_rerank_verdicts_total"
	MetricRerankFallbacks  = "oppfinder_rerank_batch_fallbacks_total"
	MetricRetrievals       = "oppfinder_retrievals_total"
)

// Stage labels.
const (
	StageLoad     = "load"
	StageLexical  = "lexical"
	StageRerank   = "rerank"
	StageRetrieve = "retrieve"
)

// Metrics contains Prometheus metrics for the retrieval engine.
// All operations are thread-safe.
type Metrics struct {
	cacheLookups     *prometheus.CounterVec
	corpusLoadErrors *prometheus.CounterVec
	corpusSize       *prometheus.GaugeVec
	stageDuration    *prometheus.HistogramVec
	rerankVerdicts   *prometheus.CounterVec
	rerankFallbacks  prometheus.Counter
	retrievals       *prometheus.CounterVec
}

// New creates a Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func New() *Metrics {
	return &Metrics{
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricCacheLookups,
			Help: "Corpus cache lookups by dataset and result (hit or miss)",
		}, []string{"dataset", "result"}),
		corpusLoadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricCorpusLoadErrors,
			Help: "Backing store reads that failed and yielded an empty corpus",
		}, []string{"dataset"}),
		corpusSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: MetricCorpusSize,
			Help: "Number of records in the cached corpus snapshot",
		}, []string{"dataset"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricStageDuration,
			Help:    "Duration of retrieval stages in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		rerankVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRerankVerdicts,
			Help: "Relevance model verdicts by outcome (parsed, malformed, failed)",
		}, []string{"outcome"}),
		rerankFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRerankFallbacks,
			Help: "Rerank batches that fell back to lexical ordering",
		}),
		retrievals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRetrievals,
			Help: "Retrieval calls by mode",
		}, []string{"mode"}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.cacheLookups,
		m.corpusLoadErrors,
		m.corpusSize,
		m.stageDuration,
		m.rerankVerdicts,
		m.rerankFallbacks,
		m.retrievals,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) CacheLookup(dataset string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(dataset, result).Inc()
}

func (m *Metrics) CorpusLoadError(dataset string) {
	if m == nil {
		return
	}
	m.corpusLoadErrors.WithLabelValues(dataset).Inc()
}

func (m *Metrics) SetCorpusSize(dataset string, n int) {
	if m == nil {
		return
	}
	m.corpusSize.WithLabelValues(dataset).Set(float64(n))
}

// ObserveStage records the time elapsed since start for the given stage.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (m *Metrics) RerankVerdict(outcome string) {
	if m == nil {
		return
	}
	m.rerankVerdicts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RerankFallback() {
	if m == nil {
		return
	}
	m.rerankFallbacks.Inc()
}

func (m *Metrics) Retrieval(mode string) {
	if m == nil {
		return
	}
	m.retrievals.WithLabelValues(mode).Inc()
}
