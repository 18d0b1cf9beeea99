package bootstrap

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InitAttemptsTotal counts engine initialization attempts by outcome.
	InitAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vectord",
			Subsystem: "bootstrap",
			Name:      "init_attempts_total",
			Help:      "Total number of engine initialization attempts",
		},
		[]string{"engine", "result"},
	)

	// ProbesTotal counts health probes by outcome.
	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vectord",
			Subsystem: "bootstrap",
			Name:      "health_probes_total",
			Help:      "Total number of health probes against the active engine",
		},
		[]string{"engine", "result"},
	)

	// FailoversTotal counts failover passes by outcome.
	FailoversTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vectord",
			Subsystem: "bootstrap",
			Name:      "failovers_total",
			Help:      "Total number of failover passes",
		},
		[]string{"result"},
	)

	// EngineUp reports per-engine availability as last observed.
	EngineUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "vectord",
			Subsystem: "bootstrap",
			Name:      "engine_up",
			Help:      "Whether the engine is up as of the last probe (1=up, 0=down)",
		},
		[]string{"engine"},
	)

	// ReadyStatus reports the orchestrator lifecycle state (1=ready, 0=otherwise).
	ReadyStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vectord",
			Subsystem: "bootstrap",
			Name:      "ready",
			Help:      "Whether an engine is initialized and serving (1=ready, 0=otherwise)",
		},
	)
)

func stateGauge(s State) {
	if s == StateReady {
		ReadyStatus.Set(1)
		return
	}
	ReadyStatus.Set(0)
}
