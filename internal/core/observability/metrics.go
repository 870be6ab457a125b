package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "route", "status"},
	)

	swapsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indoor_swaps_total",
			Help: "Active indoor map swaps by outcome (loaded, failed, superseded, cleared).",
		},
		[]string{"outcome"},
	)

	swapDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "indoor_swap_duration_seconds",
			Help:    "Time from swap start until the indoor map is loaded.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
	)

	levelChangesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "indoor_level_changes_total",
			Help: "Number of applied level changes.",
		},
	)

	selectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indoor_selections_total",
			Help: "Closest-map evaluations by result (same, changed, none).",
		},
		[]string{"result"},
	)

	registrySize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "indoor_registry_maps",
			Help: "Number of registered indoor maps.",
		},
	)

	rescansTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "indoor_rescans_total",
			Help: "Throttled rescans executed.",
		},
	)

	styleResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "style_layers_results_total",
			Help: "Style layer lookups by tier (lru, redis, fetch, default, error).",
		},
		[]string{"tier"},
	)

	cacheOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_ops_total",
			Help: "Redis operations by op and result.",
		},
		[]string{"op", "result"},
	)

	cacheOpDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_op_duration_seconds",
			Help:    "Latency of redis operations.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op"},
	)

	feedEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_events_total",
			Help: "Map feed events by op and result.",
		},
		[]string{"op", "result"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveSwap(outcome string, durationSeconds float64) {
	swapsTotal.WithLabelValues(outcome).Inc()
	if outcome == "loaded" {
		swapDurationSeconds.Observe(durationSeconds)
	}
}

func IncLevelChange() { levelChangesTotal.Inc() }

func ObserveSelection(result string) {
	selectionsTotal.WithLabelValues(result).Inc()
}

func SetRegistrySize(n int) { registrySize.Set(float64(n)) }

func IncRescan() { rescansTotal.Inc() }

func IncStyleResult(tier string) {
	styleResults.WithLabelValues(tier).Inc()
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	cacheOpsTotal.WithLabelValues(op, result).Inc()
	cacheOpDurationSeconds.WithLabelValues(op).Observe(durationSeconds)
}

func ObserveFeedEvent(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	feedEventsTotal.WithLabelValues(op, result).Inc()
}
