package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/vk/flowgraph/internal/config"
	"github.com/vk/flowgraph/internal/ctxlog"
	"github.com/vk/flowgraph/internal/graph"
	"github.com/vk/flowgraph/internal/typecheck"
)

// AddNode inserts a node and computes its initial activation immediately.
func (e *Engine) AddNode(ctx context.Context, nodeID, kindName string, data map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if nodeID == "" {
		return fmt.Errorf("node id must not be empty")
	}
	if _, exists := e.nodes[nodeID]; exists {
		return fmt.Errorf("node %q already exists", nodeID)
	}
	if _, ok := e.reg.Kind(kindName); !ok {
		return fmt.Errorf("unknown node kind %q", kindName)
	}

	n := &graph.Node{ID: nodeID, Kind: kindName, Data: copyData(data)}
	e.nodes[nodeID] = n
	n.IsHead = e.calc.IsHead(n, e.topo)

	ctxlog.FromContext(ctx).Debug("Node added.", "node_id", nodeID, "kind", kindName)
	e.settleLocked(ctx, []string{nodeID})
	return nil
}

// RemoveNode deletes a node along with every connection touching it, purges
// its cache record, its persisted data, and its supervisor state, then
// recomputes the former dependents.
func (e *Engine) RemoveNode(ctx context.Context, nodeID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.nodes[nodeID]; !ok {
		return &NotFoundError{What: "node", ID: nodeID}
	}

	orphans := e.topo.ChildrenOf(nodeID)

	kept := e.conns[:0]
	for _, c := range e.conns {
		if c.SourceNodeID == nodeID || c.TargetNodeID == nodeID {
			continue
		}
		kept = append(kept, c)
	}
	e.conns = kept
	delete(e.nodes, nodeID)
	delete(e.outputs, nodeID)
	e.calc.Invalidate(nodeID)
	e.sup.Remove(nodeID)
	e.rebuildTopologyLocked()

	if err := e.store.Remove(ctx, nodeID); err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to remove persisted node data.", "node_id", nodeID, "error", err)
	}

	ctxlog.FromContext(ctx).Debug("Node removed.", "node_id", nodeID, "orphaned_dependents", len(orphans))
	e.settleLocked(ctx, orphans)
	return nil
}

// AddConnection validates endpoint handles and type compatibility, then
// inserts the edge and recomputes the target subtree.
func (e *Engine) AddConnection(ctx context.Context, c graph.Connection) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.validateConnectionLocked(c); err != nil {
		return err
	}
	for _, existing := range e.conns {
		if existing == c {
			return fmt.Errorf("connection %s already exists", c)
		}
	}

	e.conns = append(e.conns, c)
	e.rebuildTopologyLocked()

	ctxlog.FromContext(ctx).Debug("Connection added.", "connection", c.String())
	e.settleLocked(ctx, []string{c.TargetNodeID})
	return nil
}

// RemoveConnection deletes an edge and recomputes the former target subtree.
func (e *Engine) RemoveConnection(ctx context.Context, c graph.Connection) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := -1
	for i, existing := range e.conns {
		if existing == c {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &NotFoundError{What: "connection", ID: c.String()}
	}

	e.conns = append(e.conns[:idx], e.conns[idx+1:]...)
	e.rebuildTopologyLocked()

	ctxlog.FromContext(ctx).Debug("Connection removed.", "connection", c.String())
	e.settleLocked(ctx, []string{c.TargetNodeID})
	return nil
}

// SetNodeData merges partial data into a node's own data and recomputes it.
// When the node is errored and one of its kind's reset keys changed, the
// supervisor's attempt counter resets, re-enabling automatic retries.
func (e *Engine) SetNodeData(ctx context.Context, nodeID string, partial map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	n, ok := e.nodes[nodeID]
	if !ok {
		return &NotFoundError{What: "node", ID: nodeID}
	}

	if n.Data == nil {
		n.Data = make(map[string]any, len(partial))
	}
	for k, v := range partial {
		n.Data[k] = v
	}

	if e.resetKeyTouched(n.Kind, partial) {
		if e.sup.Reset(nodeID) {
			ctxlog.FromContext(ctx).Info("Reset key changed, retry counter cleared.", "node_id", nodeID)
		}
	}

	e.settleLocked(ctx, []string{nodeID})
	return nil
}

// LoadModel replaces the whole working set with a loaded graph model. Head
// nodes settle first, then everything else breadth first.
func (e *Engine) LoadModel(ctx context.Context, model *config.Model) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	nodes := make(map[string]*graph.Node, len(model.Nodes))
	for _, cn := range model.Nodes {
		if _, ok := e.reg.Kind(cn.Kind); !ok {
			return fmt.Errorf("node %q: unknown kind %q", cn.ID, cn.Kind)
		}
		if _, dup := nodes[cn.ID]; dup {
			return fmt.Errorf("duplicate node id %q", cn.ID)
		}
		nodes[cn.ID] = &graph.Node{ID: cn.ID, Kind: cn.Kind, Data: copyData(cn.Data)}
	}

	prevNodes, prevConns, prevTopo := e.nodes, e.conns, e.topo
	e.nodes = nodes
	e.conns = nil
	for _, cc := range model.Connections {
		c := graph.Connection{
			SourceNodeID:   cc.SourceNode,
			SourceHandleID: cc.SourceHandle,
			TargetNodeID:   cc.TargetNode,
			TargetHandleID: cc.TargetHandle,
		}
		if err := e.validateConnectionLocked(c); err != nil {
			e.nodes, e.conns, e.topo = prevNodes, prevConns, prevTopo
			return err
		}
		e.conns = append(e.conns, c)
	}
	e.rebuildTopologyLocked()

	for id := range e.outputs {
		delete(e.outputs, id)
	}
	e.pending = nil

	// Settle the whole graph: heads first, the rest in stable order.
	roots := make([]string, 0, len(e.nodes))
	for id := range e.nodes {
		roots = append(roots, id)
	}
	sort.Slice(roots, func(i, j int) bool {
		a, b := e.nodes[roots[i]], e.nodes[roots[j]]
		if a.IsHead != b.IsHead {
			return a.IsHead
		}
		return a.ID < b.ID
	})

	ctxlog.FromContext(ctx).Info("Graph model loaded.", "nodes", len(e.nodes), "connections", len(e.conns))
	e.settleLocked(ctx, roots)
	return nil
}

// RetryNode forces an immediate recompute of an errored node, bypassing the
// backoff schedule.
func (e *Engine) RetryNode(ctx context.Context, nodeID string) error {
	e.mu.Lock()
	exists := false
	if _, ok := e.nodes[nodeID]; ok {
		exists = true
	}
	e.mu.Unlock()
	if !exists {
		return &NotFoundError{What: "node", ID: nodeID}
	}
	// RetryNow drives retryFromSupervisor synchronously, which takes its own
	// turn on the engine lock.
	return e.sup.RetryNow(nodeID)
}

// Retrigger resumes work abandoned by an over-budget pass.
func (e *Engine) Retrigger(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.pending) == 0 {
		return
	}
	e.settleLocked(ctx, nil)
}

// validateConnectionLocked checks both endpoints exist, the handles are
// declared with the right directions, and the type codes are compatible.
func (e *Engine) validateConnectionLocked(c graph.Connection) error {
	src, ok := e.nodes[c.SourceNodeID]
	if !ok {
		return &NotFoundError{What: "source node", ID: c.SourceNodeID}
	}
	dst, ok := e.nodes[c.TargetNodeID]
	if !ok {
		return &NotFoundError{What: "target node", ID: c.TargetNodeID}
	}
	if c.SourceNodeID == c.TargetNodeID {
		return fmt.Errorf("connection %s: a node cannot connect to itself", c)
	}

	srcKind, _ := e.reg.Kind(src.Kind)
	dstKind, _ := e.reg.Kind(dst.Kind)

	srcHandle, ok := srcKind.Handle(c.SourceHandleID)
	if !ok || srcHandle.Direction != graph.DirectionSource {
		return fmt.Errorf("connection %s: node %q has no source handle %q", c, c.SourceNodeID, c.SourceHandleID)
	}
	dstHandle, ok := dstKind.Handle(c.TargetHandleID)
	if !ok || dstHandle.Direction != graph.DirectionTarget {
		return fmt.Errorf("connection %s: node %q has no target handle %q", c, c.TargetNodeID, c.TargetHandleID)
	}

	if err := typecheck.Validate(srcHandle.TypeCode, dstHandle.TypeCode); err != nil {
		return fmt.Errorf("connection %s: %w", c, err)
	}
	return nil
}

// rebuildTopologyLocked swaps in a fresh adjacency index and refreshes the
// derived head flags.
func (e *Engine) rebuildTopologyLocked() {
	e.topo = graph.BuildTopology(e.conns)
	for _, n := range e.nodes {
		n.IsHead = e.calc.IsHead(n, e.topo)
	}
}

// resetKeyTouched reports whether the partial update touches one of the
// kind's reset keys. Kinds without reset keys treat every key as one.
func (e *Engine) resetKeyTouched(kindName string, partial map[string]any) bool {
	kind, ok := e.reg.Kind(kindName)
	if !ok {
		return false
	}
	if len(kind.ResetKeys) == 0 {
		return len(partial) > 0
	}
	for _, key := range kind.ResetKeys {
		if _, touched := partial[key]; touched {
			return true
		}
	}
	return false
}

func copyData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
