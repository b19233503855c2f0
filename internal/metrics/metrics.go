// Package metrics is the Prometheus-backed observability adapter. It exposes
// propagation and supervisor measurements as collectors registered with
// promauto on the default registry, served by the app's /metrics endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// passDuration measures settle pass latency.
	// Labels: outcome (completed, abandoned)
	passDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "flowgraph",
		Subsystem: "propagation",
		Name:      "pass_duration_seconds",
		Help:      "Settle pass latency in seconds",
		Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
	}, []string{"outcome"})

	// passRecomputed tracks how many nodes one settle pass touched.
	passRecomputed = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "flowgraph",
		Subsystem: "propagation",
		Name:      "pass_recomputed_nodes",
		Help:      "Nodes recomputed per settle pass",
		Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})

	// activationFlips counts observed activation changes.
	activationFlips = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "flowgraph",
		Subsystem: "propagation",
		Name:      "activation_flips_total",
		Help:      "Total activation state changes emitted",
	})

	// coalescedEvents counts queue entries dropped by per-pass coalescing.
	coalescedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "flowgraph",
		Subsystem: "propagation",
		Name:      "coalesced_events_total",
		Help:      "Total propagation events coalesced within a settle pass",
	})

	// nodeErrors counts compute failures per node.
	// Labels: node_id
	nodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowgraph",
		Subsystem: "supervisor",
		Name:      "node_errors_total",
		Help:      "Total node compute failures",
	}, []string{"node_id"})

	// recoveryDuration measures errored-to-healthy downtime.
	recoveryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "flowgraph",
		Subsystem: "supervisor",
		Name:      "recovery_duration_seconds",
		Help:      "Time from first failure to recovery",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	})
)

// Prometheus implements observe.Observer on top of the package collectors.
type Prometheus struct{}

func (Prometheus) NodeErrored(nodeID string, attempt int, err error) {
	nodeErrors.WithLabelValues(nodeID).Inc()
}

func (Prometheus) NodeRecovered(nodeID string, attempts int, downtime time.Duration) {
	recoveryDuration.Observe(downtime.Seconds())
}

func (Prometheus) PassCompleted(tick uint64, recomputed, flipped int, elapsed time.Duration) {
	passDuration.WithLabelValues("completed").Observe(elapsed.Seconds())
	passRecomputed.Observe(float64(recomputed))
	activationFlips.Add(float64(flipped))
}

func (Prometheus) PassAbandoned(tick uint64, pendingNodes int, budget time.Duration) {
	passDuration.WithLabelValues("abandoned").Observe(budget.Seconds())
}

func (Prometheus) EventCoalesced(nodeID string) {
	coalescedEvents.Inc()
}
