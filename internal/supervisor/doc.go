// Package supervisor isolates per-node compute failures. Each node moves
// through a Healthy -> Errored -> Recovering -> Healthy state machine: a
// failure records the error and schedules an automatic retry after an
// exponential backoff, up to a capped attempt count; past the cap the node
// stays Errored until its own data changes (the reset-keys contract) or a
// manual retry is requested. Removing a node cancels its pending retry timer
// so no scheduled work dangles.
//
// The supervisor never mutates graph state itself; retries are delivered
// through a callback into the engine's mutation surface, and measurements
// flow out through the observability adapter.
package supervisor
