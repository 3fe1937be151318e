package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for ingestion and queries.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	DocumentsFetched *prometheus.CounterVec
	RecordsIngested  *prometheus.CounterVec
	RecordsDropped   prometheus.Counter
	IngestRuns       *prometheus.CounterVec
	IngestDuration   prometheus.Histogram
	QueryDuration    *prometheus.HistogramVec
	CacheLookups     *prometheus.CounterVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer
// to expose them on promhttp.Handler.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DocumentsFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "brick_documents_fetched_total",
			Help: "Listing documents fetched, by outcome",
		}, []string{"status"}), // ok, error
		RecordsIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "brick_records_ingested_total",
			Help: "Records written by ingestion runs, by collection",
		}, []string{"collection"}),
		RecordsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "brick_records_dropped_total",
			Help: "Extracted records rejected by validation",
		}),
		IngestRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "brick_ingest_runs_total",
			Help: "Ingestion runs, by outcome",
		}, []string{"status"}), // ok, error, skipped
		IngestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "brick_ingest_duration_seconds",
			Help:    "Duration of a full ingestion run",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "brick_query_duration_seconds",
			Help:    "Duration of query engine operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "brick_indicator_cache_lookups_total",
			Help: "Indicator cache lookups, by result",
		}, []string{"result"}), // hit, miss, error
	}
}

func (m *Metrics) IncDocumentFetch(status string) {
	if m == nil {
		return
	}
	m.DocumentsFetched.WithLabelValues(status).Inc()
}

func (m *Metrics) AddIngested(collection string, n int) {
	if m == nil {
		return
	}
	m.RecordsIngested.WithLabelValues(collection).Add(float64(n))
}

func (m *Metrics) AddDropped(n int) {
	if m == nil {
		return
	}
	m.RecordsDropped.Add(float64(n))
}

func (m *Metrics) ObserveIngest(status string, started time.Time) {
	if m == nil {
		return
	}
	m.IngestRuns.WithLabelValues(status).Inc()
	m.IngestDuration.Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObserveQuery(operation string, started time.Time) {
	if m == nil {
		return
	}
	m.QueryDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (m *Metrics) IncCacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}
