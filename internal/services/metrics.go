package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// routeRuns records handler latency per route and outcome (ok|error).
	routeRuns = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "modbot_route_duration_seconds",
			Help:    "Duration of update handler runs in seconds.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"route", "outcome"},
	)

	// updatesTotal counts inbound updates by kind (message|callback).
	updatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modbot_updates_total",
			Help: "Inbound updates by kind.",
		},
		[]string{"kind"},
	)

	// moderationActions counts side effects applied to users.
	moderationActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modbot_moderation_actions_total",
			Help: "Moderation actions by kind (warn, mute, ban, delete, ignore, rollback).",
		},
		[]string{"action"},
	)

	// warningsDecayed counts rows lowered by the decay job.
	warningsDecayed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "modbot_warnings_decayed_total",
			Help: "Warning rows lowered by the decay job.",
		},
	)
)

func init() {
	prometheus.MustRegister(routeRuns, updatesTotal, moderationActions, warningsDecayed)
}
