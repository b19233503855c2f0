// Package observe defines the observability adapter consumed by the engine
// and the error supervisor. Implementations only ever receive measurements;
// they never mutate engine state. The no-op observer is the default, selected
// explicitly at startup.
package observe

import (
	"log/slog"
	"time"
)

// Observer receives error metrics and propagation timing. All methods must be
// safe for concurrent use and must not block the caller.
type Observer interface {
	// NodeErrored is invoked each time a node's compute or predicate fails.
	NodeErrored(nodeID string, attempt int, err error)
	// NodeRecovered is invoked when an errored node computes successfully
	// again. downtime covers first failure to recovery.
	NodeRecovered(nodeID string, attempts int, downtime time.Duration)
	// PassCompleted reports one finished settle pass.
	PassCompleted(tick uint64, recomputed, flipped int, elapsed time.Duration)
	// PassAbandoned reports a settle pass that exceeded its time budget.
	PassAbandoned(tick uint64, pendingNodes int, budget time.Duration)
	// EventCoalesced reports a queue entry dropped because the node was
	// already scheduled within the same pass.
	EventCoalesced(nodeID string)
}

// Nop is the default observer; it discards everything.
type Nop struct{}

func (Nop) NodeErrored(string, int, error)                {}
func (Nop) NodeRecovered(string, int, time.Duration)      {}
func (Nop) PassCompleted(uint64, int, int, time.Duration) {}
func (Nop) PassAbandoned(uint64, int, time.Duration)      {}
func (Nop) EventCoalesced(string)                         {}

// Log is an observer that writes structured records to a slog.Logger.
type Log struct {
	Logger *slog.Logger
}

func (l Log) NodeErrored(nodeID string, attempt int, err error) {
	l.Logger.Warn("Node compute errored.", "node_id", nodeID, "attempt", attempt, "error", err)
}

func (l Log) NodeRecovered(nodeID string, attempts int, downtime time.Duration) {
	l.Logger.Info("Node recovered.", "node_id", nodeID, "attempts", attempts, "downtime", downtime)
}

func (l Log) PassCompleted(tick uint64, recomputed, flipped int, elapsed time.Duration) {
	l.Logger.Debug("Settle pass completed.", "tick", tick, "recomputed", recomputed, "flipped", flipped, "elapsed", elapsed)
}

func (l Log) PassAbandoned(tick uint64, pendingNodes int, budget time.Duration) {
	l.Logger.Warn("Settle pass abandoned over budget.", "tick", tick, "pending", pendingNodes, "budget", budget)
}

func (l Log) EventCoalesced(nodeID string) {
	l.Logger.Debug("Propagation event coalesced.", "node_id", nodeID)
}

// Multi fans measurements out to several observers.
type Multi []Observer

func (m Multi) NodeErrored(nodeID string, attempt int, err error) {
	for _, o := range m {
		o.NodeErrored(nodeID, attempt, err)
	}
}

func (m Multi) NodeRecovered(nodeID string, attempts int, downtime time.Duration) {
	for _, o := range m {
		o.NodeRecovered(nodeID, attempts, downtime)
	}
}

func (m Multi) PassCompleted(tick uint64, recomputed, flipped int, elapsed time.Duration) {
	for _, o := range m {
		o.PassCompleted(tick, recomputed, flipped, elapsed)
	}
}

func (m Multi) PassAbandoned(tick uint64, pendingNodes int, budget time.Duration) {
	for _, o := range m {
		o.PassAbandoned(tick, pendingNodes, budget)
	}
}

func (m Multi) EventCoalesced(nodeID string) {
	for _, o := range m {
		o.EventCoalesced(nodeID)
	}
}
