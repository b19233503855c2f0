package activation

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/flowgraph/internal/graph"
	"github.com/vk/flowgraph/internal/registry"
)

// Environment is the read-only view the calculator needs of the rest of the
// graph: which nodes are currently active and what they emit. The engine
// implements it over its working set.
type Environment interface {
	// NodeActive reports the current activation of a node.
	NodeActive(nodeID string) bool
	// Output returns the value a node currently emits on a source handle.
	// Only active nodes have outputs.
	Output(nodeID, handleID string) (any, bool)
}

// Key identifies the snapshot a cached activation record was computed from.
type Key struct {
	NodeID        string
	ConnectionSig string
	UpstreamSig   string
	DataSig       string
}

// Record is one memoized activation result. Exactly one record exists per
// node; it is replaced atomically, never partially updated. Errored records
// are never served from the cache: the node re-evaluates until it produces a
// clean result.
type Record struct {
	Active     bool
	Errored    bool
	ComputedAt time.Time
	Key        Key
}

// valid reports whether the record can be trusted at all. A record whose
// signatures failed to canonicalize is treated as corrupt and forces a
// recompute for its node only.
func (r Record) valid() bool {
	return r.Key.NodeID != "" && r.Key.DataSig != ""
}

// Stats counts cache behavior, mainly for tests and observability.
type Stats struct {
	Hits       uint64
	Recomputes uint64
	Bypasses   uint64
}

// Options configures a Calculator.
type Options struct {
	// Now supplies timestamps for records. Defaults to time.Now.
	Now func() time.Time
	// OnError receives predicate failures. Activation has already resolved
	// to false by the time the hook runs; the calculator never throws.
	OnError func(ctx context.Context, nodeID string, err error)
}

// Calculator memoizes per-node activation computation.
type Calculator struct {
	reg     *registry.Registry
	cache   map[string]Record
	stats   Stats
	now     func() time.Time
	onError func(ctx context.Context, nodeID string, err error)
}

// New creates a Calculator over the given kind registry.
func New(reg *registry.Registry, opts Options) *Calculator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	onError := opts.OnError
	if onError == nil {
		onError = func(context.Context, string, error) {}
	}
	return &Calculator{
		reg:     reg,
		cache:   make(map[string]Record),
		now:     now,
		onError: onError,
	}
}

// RelevantParents returns the activation-relevant incoming connections of a
// node: those targeting one of its kind's required input handles. Trigger
// kinds have none by definition.
func (c *Calculator) RelevantParents(n *graph.Node, topo *graph.Topology) []graph.Connection {
	kind, ok := c.reg.Kind(n.Kind)
	if !ok || kind.Category == registry.CategoryTrigger {
		return nil
	}
	required := make(map[string]struct{})
	for _, id := range kind.RequiredInputs() {
		required[id] = struct{}{}
	}
	return topo.ParentsOf(n.ID, func(handleID string) bool {
		_, ok := required[handleID]
		return ok
	})
}

// ActiveInputs assembles the active upstream outputs feeding a node, keyed
// by target handle id. The engine reuses it when invoking the compute
// contract so predicates and compute see the same coalesced input state.
func (c *Calculator) ActiveInputs(n *graph.Node, topo *graph.Topology, env Environment) map[string]any {
	inputs := make(map[string]any)
	for _, conn := range c.RelevantParents(n, topo) {
		if !env.NodeActive(conn.SourceNodeID) {
			continue
		}
		v, ok := env.Output(conn.SourceNodeID, conn.SourceHandleID)
		if !ok {
			continue
		}
		inputs[conn.TargetHandleID] = v
	}
	return inputs
}

// Activation returns the node's current activation, recomputing only when
// the memoized record's snapshot key no longer matches. Given an identical
// (connections, upstream outputs, own data) snapshot it always returns the
// same value.
func (c *Calculator) Activation(ctx context.Context, n *graph.Node, topo *graph.Topology, env Environment) bool {
	kind, ok := c.reg.Kind(n.Kind)
	if !ok {
		c.onError(ctx, n.ID, fmt.Errorf("unknown node kind %q", n.Kind))
		return false
	}

	conns := c.RelevantParents(n, topo)
	head := len(conns) == 0
	inputs := c.ActiveInputs(n, topo, env)
	connected := connectedHandles(conns)

	key := Key{
		NodeID:        n.ID,
		ConnectionSig: connectionSignature(conns),
		UpstreamSig:   upstreamSignature(conns, env),
		DataSig:       DataSignature(n.Data),
	}

	if rec, ok := c.cache[n.ID]; ok && rec.valid() && !rec.Errored && rec.Key == key && key.DataSig != "" {
		if !rec.Active {
			c.stats.Hits++
			return false
		}
		// Quick-check bypass: a cached active state is re-verified with one
		// cheap predicate evaluation so a rapid deactivation is never masked
		// by a stale record.
		quick, err := c.evaluate(kind, head, n.Data, inputs, connected)
		if err == nil && quick {
			c.stats.Hits++
			return true
		}
		c.stats.Bypasses++
	}

	active, err := c.evaluate(kind, head, n.Data, inputs, connected)
	if err != nil {
		active = false
		c.onError(ctx, n.ID, err)
	}
	c.stats.Recomputes++
	c.cache[n.ID] = Record{Active: active, Errored: err != nil, ComputedAt: c.now(), Key: key}
	return active
}

// IsHead reports whether the node currently counts as a head node.
func (c *Calculator) IsHead(n *graph.Node, topo *graph.Topology) bool {
	return len(c.RelevantParents(n, topo)) == 0
}

// Invalidate drops the memoized record for a node, e.g. when the node is
// removed from the graph.
func (c *Calculator) Invalidate(nodeID string) {
	delete(c.cache, nodeID)
}

// Stats returns a copy of the cache counters.
func (c *Calculator) Stats() Stats {
	return c.stats
}

// evaluate runs the appropriate predicate, converting panics into errors so
// a misbehaving node kind can never take down the pass.
func (c *Calculator) evaluate(kind *registry.Kind, head bool, data map[string]any, inputs map[string]any, connected []string) (active bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			active = false
			err = fmt.Errorf("predicate panic: %v", r)
		}
	}()

	if head {
		if kind.Head == nil {
			// Kinds without a head predicate contribute nothing on their own.
			return false, nil
		}
		return kind.Head(data)
	}

	if kind.Downstream == nil {
		return defaultDownstream(inputs, connected), nil
	}
	return kind.Downstream(data, inputs)
}

// defaultDownstream is logical AND across all required input handles that
// have a connection: every connected required handle must carry an active
// upstream output.
func defaultDownstream(inputs map[string]any, connected []string) bool {
	for _, handleID := range connected {
		if _, ok := inputs[handleID]; !ok {
			return false
		}
	}
	return true
}

// connectedHandles returns the distinct target handle ids among the relevant
// incoming connections.
func connectedHandles(conns []graph.Connection) []string {
	seen := make(map[string]struct{}, len(conns))
	var ids []string
	for _, c := range conns {
		if _, ok := seen[c.TargetHandleID]; ok {
			continue
		}
		seen[c.TargetHandleID] = struct{}{}
		ids = append(ids, c.TargetHandleID)
	}
	return ids
}
