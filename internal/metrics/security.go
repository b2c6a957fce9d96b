package metrics

import "github.com/prometheus/client_golang/prometheus"

// Security-pipeline and generation Prometheus metrics.
var (
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "guardrag",
			Name:      "queries_total",
			Help:      "Total queries by caller role and outcome status",
		},
		[]string{"role", "status"},
	)

	ChunksFilteredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "guardrag",
			Name:      "chunks_filtered_total",
			Help:      "Chunks removed from query candidates, by reason",
		},
		[]string{"reason"}, // "access_label" / "below_threshold"
	)

	ChunksIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "guardrag",
			Name:      "chunks_ingested_total",
			Help:      "Chunks added to the corpus, by assigned access label",
		},
		[]string{"access"},
	)

	GenerationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "guardrag",
			Name:      "generation_requests_total",
			Help:      "Total generation requests",
		},
		[]string{"provider", "model", "status"},
	)

	GenerationRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "guardrag",
			Name:      "generation_request_duration_seconds",
			Help:      "Generation request duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)
)

var secMetricsRegistered bool

// RegisterSecurityMetrics registers Prometheus security and generation
// metrics. Must be called once from main.
func RegisterSecurityMetrics() {
	if secMetricsRegistered {
		return
	}
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(ChunksFilteredTotal)
	prometheus.MustRegister(ChunksIngestedTotal)
	prometheus.MustRegister(GenerationRequestsTotal)
	prometheus.MustRegister(GenerationRequestDuration)
	secMetricsRegistered = true
}
