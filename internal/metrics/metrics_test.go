package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func getCounterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.(prometheus.Metric).Write(&m); err != nil {
		return -1
	}
	return m.GetCounter().GetValue()
}

func getGaugeValue(g prometheus.Gauge) float64 {
	var m dto.Metric
	if err := g.(prometheus.Metric).Write(&m); err != nil {
		return -1
	}
	return m.GetGauge().GetValue()
}

func getHistogramSampleCount(o prometheus.Observer) uint64 {
	var m dto.Metric
	if err := o.(prometheus.Metric).Write(&m); err != nil {
		return 0
	}
	return m.GetHistogram().GetSampleCount()
}

func TestMetrics_Register(t *testing.T) {
	t.Run("successful registration", func(t *testing.T) {
		m := New()
		reg := prometheus.NewRegistry()

		if err := m.Register(reg); err != nil {
			t.Fatalf("Register() returned error: %v", err)
		}

		// Vectors are only gathered once a series exists.
		m.CacheLookup("primary", true)
		m.CorpusLoadError("primary")
		m.SetCorpusSize("primary", 1)
		m.ObserveStage(StageLexical, time.Now())
		m.RerankVerdict("parsed")
		m.Retrieval("hybrid")

		families, err := reg.Gather()
		if err != nil {
			t.Fatalf("Gather() returned error: %v", err)
		}

		expectedNames := map[string]bool{
			MetricCacheLookups:     false,
			MetricCorpusLoadErrors: false,
			MetricCorpusSize:       false,
			MetricStageDuration:    false,
			MetricRerankVerdicts:   false,
			MetricRerankFallbacks:  false,
			MetricRetrievals:       false,
		}
		for _, family := range families {
			if _, ok := expectedNames[family.GetName()]; ok {
				expectedNames[family.GetName()] = true
			}
		}
		for name, found := range expectedNames {
			if !found {
				t.Errorf("metric %s not found in gathered metrics", name)
			}
		}
	})

	t.Run("duplicate registration fails", func(t *testing.T) {
		reg := prometheus.NewRegistry()

		if err := New().Register(reg); err != nil {
			t.Fatalf("first Register() returned error: %v", err)
		}
		if err := New().Register(reg); err == nil {
			t.Error("second Register() should have returned an error")
		}
	})
}

func TestMetrics_CacheLookup(t *testing.T) {
	m := New()

	m.CacheLookup("primary", true)
	m.CacheLookup("primary", true)
	m.CacheLookup("primary", false)
	m.CacheLookup("fallback", false)

	if v := getCounterValue(m.cacheLookups.WithLabelValues("primary", "hit")); v != 2 {
		t.Errorf("primary hits = %f, want 2", v)
	}
	if v := getCounterValue(m.cacheLookups.WithLabelValues("primary", "miss")); v != 1 {
		t.Errorf("primary misses = %f, want 1", v)
	}
	if v := getCounterValue(m.cacheLookups.WithLabelValues("fallback", "miss")); v != 1 {
		t.Errorf("fallback misses = %f, want 1", v)
	}
}

func TestMetrics_Corpus(t *testing.T) {
	m := New()

	m.CorpusLoadError("primary")
	m.SetCorpusSize("primary", 120)
	m.SetCorpusSize("primary", 42)

	if v := getCounterValue(m.corpusLoadErrors.WithLabelValues("primary")); v != 1 {
		t.Errorf("load errors = %f, want 1", v)
	}
	if v := getGaugeValue(m.corpusSize.WithLabelValues("primary")); v != 42 {
		t.Errorf("corpus size = %f, want 42", v)
	}
}

func TestMetrics_Rerank(t *testing.T) {
	m := New()

	for i := 0; i < 3; i++ {
		m.RerankVerdict("parsed")
	}
	m.RerankVerdict("failed")
	m.RerankFallback()

	if v := getCounterValue(m.rerankVerdicts.WithLabelValues("parsed")); v != 3 {
		t.Errorf("parsed verdicts = %f, want 3", v)
	}
	if v := getCounterValue(m.rerankVerdicts.WithLabelValues("failed")); v != 1 {
		t.Errorf("failed verdicts = %f, want 1", v)
	}
	if v := getCounterValue(m.rerankFallbacks); v != 1 {
		t.Errorf("fallbacks = %f, want 1", v)
	}
}

func TestMetrics_ObserveStage(t *testing.T) {
	m := New()

	m.ObserveStage(StageRerank, time.Now().Add(-time.Second))
	m.ObserveStage(StageRerank, time.Now())

	if c := getHistogramSampleCount(m.stageDuration.WithLabelValues(StageRerank)); c != 2 {
		t.Errorf("rerank sample count = %d, want 2", c)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	m.CacheLookup("primary", true)
	m.CorpusLoadError("primary")
	m.SetCorpusSize("primary", 1)
	m.ObserveStage(StageRerank, time.Now())
	m.RerankVerdict("parsed")
	m.RerankFallback()
	m.Retrieval("offline")
}
