package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recommendation pipeline metrics.
var (
	RecommendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "manrec",
			Name:      "recommend_requests_total",
			Help:      "Total number of recommendation queries",
		},
		[]string{"status"}, // "success" / "error"
	)

	RecommendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "manrec",
			Name:      "recommend_duration_seconds",
			Help:      "End-to-end recommendation latency in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	RecommendResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "manrec",
			Name:      "recommend_results",
			Help:      "Number of results returned per query",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 200},
		},
	)
)

var recMetricsRegistered bool

// RegisterRecommendMetrics registers recommendation metrics. Must be called once from main.
func RegisterRecommendMetrics() {
	if recMetricsRegistered {
		return
	}
	prometheus.MustRegister(RecommendRequestsTotal)
	prometheus.MustRegister(RecommendDuration)
	prometheus.MustRegister(RecommendResults)
	recMetricsRegistered = true
}
