package metrics

import "github.com/prometheus/client_golang/prometheus"

// Index Prometheus metrics.
var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docindex",
			Name:      "requests_total",
			Help:      "Total number of processed requests",
		},
		[]string{"op", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docindex",
			Name:      "request_duration_seconds",
			Help:      "Request processing duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"op"},
	)

	CacheEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docindex",
			Name:      "cache_events_total",
			Help:      "Document cache hits, misses, disk hits and evictions",
		},
		[]string{"event"}, // "hit" / "miss" / "disk_hit" / "eviction"
	)

	CacheDocuments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docindex",
			Name:      "cache_documents",
			Help:      "Documents currently resident in the cache",
		},
	)

	StoreWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docindex",
			Name:      "store_writes_total",
			Help:      "Metadata store rewrites",
		},
		[]string{"op", "status"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docindex",
			Name:      "search_duration_seconds",
			Help:      "Keyword search duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
		},
		[]string{"strategy"}, // "serial" / "parallel"
	)

	SearchWorkers = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docindex",
			Name:      "search_workers",
			Help:      "Workers used per parallel search",
			Buckets:   []float64{2, 4, 8, 12, 16, 20},
		},
	)

	SearchWorkerFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docindex",
			Name:      "search_worker_failures_total",
			Help:      "Search workers that crashed and contributed no results",
		},
	)
)

var indexMetricsRegistered bool

// RegisterIndexMetrics registers Prometheus index metrics. Must be called once from main.
func RegisterIndexMetrics() {
	if indexMetricsRegistered {
		return
	}
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(CacheEventsTotal)
	prometheus.MustRegister(CacheDocuments)
	prometheus.MustRegister(StoreWritesTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchWorkers)
	prometheus.MustRegister(SearchWorkerFailuresTotal)
	indexMetricsRegistered = true
}
