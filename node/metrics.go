package node

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "nodesim"

var (
	phaseAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "phase",
		Name:      "attempts_total",
		Help:      "Number of calls made per protocol phase",
	}, []string{"phase"})

	phaseOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "phase",
		Name:      "outcomes_total",
		Help:      "Number of finished protocol phases by outcome",
	}, []string{"phase", "outcome"})

	runOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "pow",
		Name:      "runs_total",
		Help:      "Number of proof of work runs by difficulty kind and final state",
	}, []string{"kind", "state"})
)
