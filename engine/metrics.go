package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nathoo/petcore/engine/events"
	"github.com/nathoo/petcore/engine/queue"
)

// ActionsExecuted counts completed character actions.
// Use RegisterMetrics to register this with a Prometheus registry.
var ActionsExecuted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "petcore_actions_executed_total",
		Help: "Total number of completed character actions",
	},
	[]string{"character", "action"},
)

// BattleOutcomes counts finished battles by opponent and outcome.
var BattleOutcomes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "petcore_battles_total",
		Help: "Total number of finished battles",
	},
	[]string{"opponent", "outcome"},
)

// RegisterMetrics registers the engine metrics, including those of the
// queue and events packages, with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(ActionsExecuted)
	reg.MustRegister(BattleOutcomes)
	queue.RegisterMetrics(reg)
	events.RegisterMetrics(reg)
}
