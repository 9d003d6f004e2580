package cache

import "github.com/prometheus/client_golang/prometheus"

var (
	// cacheEvictions counts entries leaving a cache, by cache name and reason.
	cacheEvictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modbot_cache_evictions_total",
			Help: "Entries evicted from in-memory caches.",
		},
		[]string{"cache", "reason"},
	)

	// spamVerdicts counts flood detector answers by detector mode and verdict.
	spamVerdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modbot_spam_checks_total",
			Help: "Flood detector checks by mode and verdict.",
		},
		[]string{"mode", "verdict"},
	)
)

func init() {
	prometheus.MustRegister(cacheEvictions, spamVerdicts)
}
