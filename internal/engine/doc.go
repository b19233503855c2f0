// Package engine is the propagation orchestrator. All graph mutation enters
// through its API (AddNode, RemoveNode, AddConnection, RemoveConnection,
// SetNodeData, LoadModel); each entry point refreshes the topology index when
// edges changed and runs one settle pass.
//
// Propagation is two-tier. Tier 1: the moment a node's activation flips, a
// propagation event is emitted synchronously to subscribers, before any
// downstream recomputation, bounding perceived latency to the current turn.
// Tier 2: the node's direct children are enqueued and processed breadth
// first; multiple signals for one node within a pass coalesce into a single
// recomputation over the final input state, and a node already processed in
// the pass is never re-enqueued, which keeps cyclic subgraphs from looping.
// Above a configurable node count the engine defers child enqueueing to one
// end-of-wave batch, bounding recomputation per external mutation.
//
// Every node-compute call is wrapped: an error or panic deactivates the one
// offending node, hands it to the error supervisor, and the pass continues
// for everything else. A pass that exceeds its time budget is abandoned; the
// remaining queue is kept and re-triggered by the next mutation or an
// explicit Retrigger.
//
// The engine owns the activation cache, the topology index, and the output
// table exclusively. It is single-orchestrator by construction: one mutex
// serializes all mutation turns, and concurrency is expressed through
// queuing, coalescing, and batching rather than parallel node execution.
package engine
