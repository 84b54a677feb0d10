package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ingestion Prometheus metrics.
var (
	IngestPagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wikirag",
			Name:      "ingest_pages_total",
			Help:      "Total pages seen by ingestion runs",
		},
		[]string{"outcome"}, // "processed" / "skipped"
	)

	IngestChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wikirag",
			Name:      "ingest_chunks_total",
			Help:      "Total chunks embedded by ingestion runs",
		},
	)

	IngestRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "wikirag",
			Name:      "ingest_run_duration_seconds",
			Help:      "End-to-end ingestion run duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)
)

var ingestRegistered = false

// RegisterIngestMetrics registers ingestion metrics with the default registry.
func RegisterIngestMetrics() {
	if ingestRegistered {
		return
	}
	ingestRegistered = true
	prometheus.MustRegister(IngestPagesTotal, IngestChunksTotal, IngestRunDuration)
}
