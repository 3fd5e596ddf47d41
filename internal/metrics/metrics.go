// Package metrics holds the in-process Prometheus counters/histograms
// backing the usage_metrics table. There is no HTTP /metrics endpoint
// (the dashboard is a non-goal); instead a periodic snapshot flushes
// current counter values into the store via store.RecordMetric. Grounded
// on ferg-cod3s-conexus's use of prometheus/client_golang for in-process
// counters, the closest pack member to this "collect, never serve"
// shape.
package metrics

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/mvp-joe/codegraphd/internal/store"
)

// Registry owns every metric this engine collects.
type Registry struct {
	registry *prometheus.Registry

	FilesProcessed  *prometheus.CounterVec
	FileDuration    *prometheus.HistogramVec
	QueryLatency    prometheus.Histogram
	ProviderResults *prometheus.CounterVec
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
}

// New registers every metric on a fresh, private registry (never the
// global default registerer, so multiple engines in one process don't
// collide).
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		FilesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "index_files_processed_total",
			Help: "Files processed by the incremental indexer, by outcome.",
		}, []string{"outcome"}),
		FileDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "index_file_duration_seconds",
			Help: "Per-file indexing duration.",
		}, []string{"outcome"}),
		QueryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "query_latency_seconds",
			Help: "End-to-end query pipeline latency.",
		}),
		ProviderResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "provider_results_total",
			Help: "Snippets returned per context provider.",
		}, []string{"provider"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hit_total",
			Help: "Query optimizer cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_miss_total",
			Help: "Query optimizer cache misses.",
		}),
	}

	reg.MustRegister(r.FilesProcessed, r.FileDuration, r.QueryLatency, r.ProviderResults, r.CacheHits, r.CacheMisses)
	return r
}

// Snapshot gathers every registered metric and upserts one usage_metrics
// row per label combination, called on store checkpoint and on clean
// shutdown. recordedAt is supplied by the caller (the package never
// calls time.Now itself, so snapshots stay reproducible in tests).
func (r *Registry) Snapshot(s *store.Store, recordedAt string) error {
	families, err := r.registry.Gather()
	if err != nil {
		return fmt.Errorf("metrics: failed to gather: %w", err)
	}

	return s.WithWriteTx(func(tx *sql.Tx) error {
		for _, family := range families {
			for _, m := range family.GetMetric() {
				value := metricValue(family.GetType(), m)
				labels := labelString(m.GetLabel())
				if err := store.RecordMetric(tx, family.GetName(), labels, value, recordedAt); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func metricValue(kind dto.MetricType, m *dto.Metric) float64 {
	switch kind {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue()
	case dto.MetricType_HISTOGRAM:
		return m.GetHistogram().GetSampleSum()
	default:
		return m.GetGauge().GetValue()
	}
}

func labelString(pairs []*dto.LabelPair) string {
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.GetName()+"="+p.GetValue())
	}
	return strings.Join(parts, ",")
}
