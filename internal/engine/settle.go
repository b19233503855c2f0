package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vk/flowgraph/internal/ctxlog"
	"github.com/vk/flowgraph/internal/event"
	"github.com/vk/flowgraph/internal/graph"
	"github.com/vk/flowgraph/internal/registry"
)

// settleLocked runs one settle pass: recompute the roots, emit a Tier-1
// event per activation flip, then walk flips breadth first until the graph
// is stable, the queue drains, or the pass budget runs out. A node whose
// direct upstream is still queued is deferred behind it, so every node sees
// its settled parents exactly once per pass. Callers hold e.mu.
func (e *Engine) settleLocked(ctx context.Context, roots []string) {
	logger := ctxlog.FromContext(ctx)
	e.tick++
	tick := e.tick
	start := e.now()
	deadline := start.Add(e.passBudget)

	// Work abandoned by a previous over-budget pass resumes ahead of the new
	// roots.
	roots = append(e.pending, roots...)
	e.pending = nil

	queue := make([]string, 0, len(roots))
	queued := make(map[string]struct{})
	processed := make(map[string]struct{})

	enqueue := func(nodeID string) {
		if _, done := processed[nodeID]; done {
			// Already settled this pass; re-entry would loop on cycles.
			return
		}
		if _, waiting := queued[nodeID]; waiting {
			e.obs.EventCoalesced(nodeID)
			return
		}
		queued[nodeID] = struct{}{}
		queue = append(queue, nodeID)
	}
	for _, id := range roots {
		enqueue(id)
	}

	// upstreamWaiting reports whether a direct parent of the node is still
	// queued in this pass. Such a node is not ready: it must see the parent's
	// settled result, not a stale one.
	upstreamWaiting := func(nodeID string) bool {
		for _, conn := range e.topo.ParentsOf(nodeID, func(string) bool { return true }) {
			if _, waiting := queued[conn.SourceNodeID]; waiting {
				return true
			}
		}
		return false
	}

	// Above the threshold, children collect into one end-of-wave batch
	// instead of going straight onto the queue.
	batchMode := len(e.nodes) > e.batchThreshold
	var batched []string

	recomputed, flipped := 0, 0
	deferrals := 0
	for {
		if len(queue) == 0 {
			if len(batched) == 0 {
				break
			}
			for _, id := range batched {
				enqueue(id)
			}
			batched = nil
			deferrals = 0
			continue
		}

		if e.now().After(deadline) {
			e.abandonLocked(logger, tick, queue, batched, processed)
			return
		}

		nodeID := queue[0]
		queue = queue[1:]

		// Dependency order: a node whose upstream is still queued moves to
		// the back so the parent settles first. The rotation bound lets
		// mutually waiting cycle members through once nothing else can make
		// progress.
		if deferrals <= len(queue) && upstreamWaiting(nodeID) {
			queue = append(queue, nodeID)
			deferrals++
			continue
		}
		deferrals = 0
		delete(queued, nodeID)
		processed[nodeID] = struct{}{}

		n, ok := e.nodes[nodeID]
		if !ok {
			continue
		}

		prev := n.IsActive
		next := e.recomputeLocked(ctx, n)
		recomputed++
		if next == prev {
			continue
		}

		n.IsActive = next
		flipped++

		// Tier 1: subscribers hear about the flip before any downstream
		// recomputation happens.
		e.emitLocked(event.Propagation{
			NodeID:         nodeID,
			PreviousActive: prev,
			NextActive:     next,
			Tick:           tick,
		})

		children := e.topo.ChildrenOf(nodeID)
		if batchMode {
			batched = append(batched, children...)
		} else {
			for _, child := range children {
				enqueue(child)
			}
		}
	}

	elapsed := e.now().Sub(start)
	e.obs.PassCompleted(tick, recomputed, flipped, elapsed)
	logger.Debug("Settle pass completed.",
		"tick", tick, "recomputed", recomputed, "flipped", flipped, "elapsed", elapsed)
}

// abandonLocked parks the unfinished queue for the next turn.
func (e *Engine) abandonLocked(logger *slog.Logger, tick uint64, queue, batched []string, processed map[string]struct{}) {
	for _, id := range queue {
		e.pending = append(e.pending, id)
	}
	for _, id := range batched {
		if _, done := processed[id]; !done {
			e.pending = append(e.pending, id)
		}
	}
	e.obs.PassAbandoned(tick, len(e.pending), e.passBudget)
	logger.Warn("Settle pass abandoned over budget.",
		"tick", tick, "pending", len(e.pending), "budget", e.passBudget)
}

// recomputeLocked resolves one node's activation and, when active, runs its
// compute contract and publishes its outputs. A failure anywhere deactivates
// this node only and hands it to the supervisor.
func (e *Engine) recomputeLocked(ctx context.Context, n *graph.Node) bool {
	env := envView{e}

	// A predicate failure inside Activation resolves to false and reports to
	// the supervisor through the calculator's error hook, which also raises
	// calcFailed for this turn.
	e.calcFailed = false
	active := e.calc.Activation(ctx, n, e.topo, env)
	if !active {
		delete(e.outputs, n.ID)
		// A clean inactive result still counts as recovery: the node is not
		// failing, it is simply gated off.
		if !e.calcFailed {
			e.sup.ReportSuccess(ctx, n.ID)
		}
		return false
	}

	kind, ok := e.reg.Kind(n.Kind)
	if !ok {
		// Activation already reported the unknown kind.
		delete(e.outputs, n.ID)
		return false
	}

	outputs := map[string]any{}
	if kind.Compute != nil {
		inputs := e.calc.ActiveInputs(n, e.topo, env)
		res, err := safeCompute(ctx, kind, n.Data, inputs)
		if err != nil {
			e.sup.ReportFailure(ctx, n.ID, &ComputeError{NodeID: n.ID, Err: err})
			delete(e.outputs, n.ID)
			return false
		}
		if res != nil {
			if len(res.NextData) > 0 {
				for k, v := range res.NextData {
					n.Data[k] = v
				}
				if serr := e.store.UpdateNodeData(ctx, n.ID, res.NextData); serr != nil {
					ctxlog.FromContext(ctx).Warn("Failed to persist node data.", "node_id", n.ID, "error", serr)
				}
			}
			for k, v := range res.Outputs {
				outputs[k] = v
			}
		}
	}
	e.sup.ReportSuccess(ctx, n.ID)

	// Active nodes without explicit outputs still emit presence on every
	// source handle so downstream gates see them.
	for _, h := range kind.Handles {
		if h.Direction != graph.DirectionSource {
			continue
		}
		if _, set := outputs[h.ID]; !set {
			outputs[h.ID] = true
		}
	}
	e.outputs[n.ID] = outputs
	return true
}

// emitLocked fans one propagation event out to every subscriber.
func (e *Engine) emitLocked(ev event.Propagation) {
	for _, sub := range e.subs {
		sub.OnPropagation(ev)
	}
}

// safeCompute shields the pass from panicking node kinds.
func safeCompute(ctx context.Context, kind *registry.Kind, data, inputs map[string]any) (res *registry.ComputeResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("compute panic: %v", r)
		}
	}()
	return kind.Compute(ctx, data, inputs)
}
