// Package observability exposes Prometheus metrics for the offline cache.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for cache operations.
const (
	OutcomeSuccess    = "success"
	OutcomeOffline    = "offline"
	OutcomeFetchError = "fetch_error"
	OutcomeWriteError = "write_error"
)

var (
	cacheOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examprep_cache_operations_total",
			Help: "Total number of subject cache attempts by outcome",
		},
		[]string{"subject", "outcome"},
	)

	cachedQuestions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "examprep_cached_questions",
			Help: "Number of valid cached questions per subject at the last stats refresh",
		},
		[]string{"subject"},
	)

	purgedEntries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "examprep_cache_purged_entries_total",
			Help: "Total number of expired or unreadable cache entries removed",
		},
	)

	online = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "examprep_online",
			Help: "1 when the service considers itself online, 0 otherwise",
		},
	)
)

// RecordCacheAttempt counts one cacheSubject attempt.
func RecordCacheAttempt(subject, outcome string) {
	cacheOperations.WithLabelValues(subject, outcome).Inc()
}

// SetCachedQuestions records the current valid count for a subject.
func SetCachedQuestions(subject string, count int) {
	cachedQuestions.WithLabelValues(subject).Set(float64(count))
}

// AddPurged counts removed cache entries.
func AddPurged(n int) {
	if n > 0 {
		purgedEntries.Add(float64(n))
	}
}

// SetOnline records the connectivity state.
func SetOnline(isOnline bool) {
	if isOnline {
		online.Set(1)
		return
	}
	online.Set(0)
}
