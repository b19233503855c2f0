// Package event defines the propagation event record published to rendering
// adapters. It sits in its own package so both the engine (producer) and the
// adapters (consumers) can depend on it without depending on each other.
package event

// Propagation is the unit the propagation engine schedules and coalesces:
// one activation flip for one node within one settle pass.
type Propagation struct {
	NodeID         string `json:"nodeId"`
	PreviousActive bool   `json:"previousActive"`
	NextActive     bool   `json:"nextActive"`
	// Tick identifies the settle pass that produced the event.
	Tick uint64 `json:"tick"`
}
