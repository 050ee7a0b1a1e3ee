package round

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roundsMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "nodesim",
		Subsystem: "round",
		Name:      "started_total",
		Help:      "Number of rounds started",
	})

	roundDurationMetric = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "nodesim",
		Subsystem: "round",
		Name:      "duration_seconds",
		Help:      "Time from the start of a round until its join returns",
		Buckets:   prometheus.ExponentialBuckets(1, 1.5, 15),
	})

	inFlightMetric = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "nodesim",
		Subsystem: "round",
		Name:      "nodes_in_flight",
		Help:      "Number of nodes currently running proof of work",
	})

	timedOutMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "nodesim",
		Subsystem: "round",
		Name:      "timed_out_total",
		Help:      "Number of rounds whose join hit the PoW window deadline",
	})

	blockMetric = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "nodesim",
		Subsystem: "round",
		Name:      "block",
		Help:      "Block number of the current round",
	})
)
