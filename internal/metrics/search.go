package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search Prometheus metrics.
var (
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cinedex",
			Name:      "searches_total",
			Help:      "Total number of search requests",
		},
		[]string{"backend", "outcome"}, // outcome: "ok" / "fallback" / "error"
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cinedex",
			Name:      "search_duration_seconds",
			Help:      "End-to-end search duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"backend"},
	)

	SearchCandidatesRetrieved = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cinedex",
			Name:      "search_candidates_retrieved",
			Help:      "Candidate pool size actually retrieved per search",
			Buckets:   []float64{0, 10, 25, 50, 100, 250, 500, 1000, 2000},
		},
		[]string{"backend"},
	)

	SearchFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cinedex",
			Name:      "search_fallbacks_total",
			Help:      "Searches answered by the lexical fallback",
		},
		[]string{"backend", "reason"}, // reason: "no_candidates" / "backend_error"
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchesTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchCandidatesRetrieved)
	prometheus.MustRegister(SearchFallbacksTotal)
	searchMetricsRegistered = true
}
