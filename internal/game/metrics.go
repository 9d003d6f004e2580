package game

import "github.com/prometheus/client_golang/prometheus"

var (
	// activeGames gauges running sessions by game kind (crocodile, roll).
	activeGames = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "modbot_active_games",
			Help: "Currently running game sessions.",
		},
		[]string{"game"},
	)

	// rollsTotal counts dice rolls by outcome (first, repeat, rejected).
	rollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modbot_rolls_total",
			Help: "Dice roll attempts by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(activeGames, rollsTotal)
}
