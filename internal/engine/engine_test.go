package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/flowgraph/internal/event"
	"github.com/vk/flowgraph/internal/graph"
	"github.com/vk/flowgraph/internal/registry"
	"github.com/vk/flowgraph/internal/render"
	"github.com/vk/flowgraph/internal/store/inmemory"
	"github.com/vk/flowgraph/internal/supervisor"
	"github.com/vk/flowgraph/internal/typecheck"
)

// triggerKind activates from its own data alone.
func triggerKind() *registry.Kind {
	return &registry.Kind{
		Name:     "trigger",
		Category: registry.CategoryTrigger,
		Handles: []graph.Handle{
			{ID: "out", Direction: graph.DirectionSource, TypeCode: typecheck.TypeBoolean},
		},
		Head: func(data map[string]any) (bool, error) {
			enabled, _ := data["enabled"].(bool)
			return enabled, nil
		},
	}
}

// gateKind relies on the default downstream predicate: AND across connected
// required inputs.
func gateKind() *registry.Kind {
	return &registry.Kind{
		Name: "gate",
		Handles: []graph.Handle{
			{ID: "in", Direction: graph.DirectionTarget, TypeCode: typecheck.TypeBoolean, Required: true},
			{ID: "out", Direction: graph.DirectionSource, TypeCode: typecheck.TypeBoolean},
		},
	}
}

// faultyKind fails its compute while data["broken"] is true.
func faultyKind() *registry.Kind {
	return &registry.Kind{
		Name: "faulty",
		Handles: []graph.Handle{
			{ID: "in", Direction: graph.DirectionTarget, TypeCode: typecheck.TypeBoolean, Required: true},
			{ID: "out", Direction: graph.DirectionSource, TypeCode: typecheck.TypeBoolean},
		},
		ResetKeys: []string{"broken"},
		Compute: func(_ context.Context, data, _ map[string]any) (*registry.ComputeResult, error) {
			if broken, _ := data["broken"].(bool); broken {
				return nil, errors.New("simulated fault")
			}
			return &registry.ComputeResult{Outputs: map[string]any{"out": true}}, nil
		},
	}
}

// counterKind counts its own invocations through the compute contract.
func counterKind() *registry.Kind {
	return &registry.Kind{
		Name: "counter",
		Handles: []graph.Handle{
			{ID: "in", Direction: graph.DirectionTarget, TypeCode: typecheck.TypeBoolean, Required: true},
			{ID: "out", Direction: graph.DirectionSource, TypeCode: typecheck.TypeNumber},
		},
		Compute: func(_ context.Context, data, _ map[string]any) (*registry.ComputeResult, error) {
			count, _ := data["count"].(int)
			count++
			return &registry.ComputeResult{
				NextData: map[string]any{"count": count},
				Outputs:  map[string]any{"out": count},
			}, nil
		},
	}
}

func testRegistry() *registry.Registry {
	reg := registry.New()
	reg.RegisterKind(triggerKind())
	reg.RegisterKind(gateKind())
	reg.RegisterKind(faultyKind())
	reg.RegisterKind(counterKind())
	return reg
}

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	e := New(testRegistry(), opts)
	t.Cleanup(e.Close)
	return e
}

// eventRecorder captures Tier-1 propagation events in order.
type eventRecorder struct {
	mu     sync.Mutex
	events []event.Propagation
}

func (r *eventRecorder) OnPropagation(ev event.Propagation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) all() []event.Propagation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Propagation(nil), r.events...)
}

func (r *eventRecorder) nodeOrder() []string {
	var ids []string
	for _, ev := range r.all() {
		ids = append(ids, ev.NodeID)
	}
	return ids
}

// buildChain wires trigger -> gate -> gate.
func buildChain(t *testing.T, e *Engine) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.AddNode(ctx, "t", "trigger", map[string]any{"enabled": false}))
	require.NoError(t, e.AddNode(ctx, "a", "gate", nil))
	require.NoError(t, e.AddNode(ctx, "b", "gate", nil))
	require.NoError(t, e.AddConnection(ctx, graph.Connection{
		SourceNodeID: "t", SourceHandleID: "out", TargetNodeID: "a", TargetHandleID: "in",
	}))
	require.NoError(t, e.AddConnection(ctx, graph.Connection{
		SourceNodeID: "a", SourceHandleID: "out", TargetNodeID: "b", TargetHandleID: "in",
	}))
}

func activeOf(t *testing.T, e *Engine, nodeID string) bool {
	t.Helper()
	active, ok := e.Activation(nodeID)
	require.True(t, ok, "node %q should exist", nodeID)
	return active
}

func TestChainPropagation(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{})
	rec := &eventRecorder{}
	e.Subscribe(rec)
	buildChain(t, e)

	require.False(t, activeOf(t, e, "t"))
	require.False(t, activeOf(t, e, "a"))
	require.False(t, activeOf(t, e, "b"))

	require.NoError(t, e.SetNodeData(ctx, "t", map[string]any{"enabled": true}))

	assert.True(t, activeOf(t, e, "t"))
	assert.True(t, activeOf(t, e, "a"))
	assert.True(t, activeOf(t, e, "b"))

	// Tier 1 emits each flip before the downstream node recomputes, so the
	// order is strictly upstream to downstream.
	assert.Equal(t, []string{"t", "a", "b"}, rec.nodeOrder())
	for _, ev := range rec.all() {
		assert.False(t, ev.PreviousActive)
		assert.True(t, ev.NextActive)
	}

	// All three flips belong to the same settle pass.
	events := rec.all()
	assert.Equal(t, events[0].Tick, events[2].Tick)

	require.NoError(t, e.SetNodeData(ctx, "t", map[string]any{"enabled": false}))
	assert.False(t, activeOf(t, e, "t"))
	assert.False(t, activeOf(t, e, "a"))
	assert.False(t, activeOf(t, e, "b"))
}

func TestIdenticalSnapshotDoesNotRecompute(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{})
	buildChain(t, e)
	require.NoError(t, e.SetNodeData(ctx, "t", map[string]any{"enabled": true}))

	before := e.CacheStats()
	require.NoError(t, e.SetNodeData(ctx, "t", map[string]any{"enabled": true}))
	after := e.CacheStats()

	assert.Equal(t, before.Recomputes, after.Recomputes, "identical snapshot must hit the cache")
	assert.Greater(t, after.Hits, before.Hits)
}

func TestLeafDataChangeIsolated(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{})
	buildChain(t, e)
	require.NoError(t, e.SetNodeData(ctx, "t", map[string]any{"enabled": true}))

	before := map[string]bool{
		"t": activeOf(t, e, "t"),
		"a": activeOf(t, e, "a"),
	}

	// b has no outgoing edges; its data cannot influence anyone else.
	require.NoError(t, e.SetNodeData(ctx, "b", map[string]any{"note": "hello"}))

	assert.Equal(t, before["t"], activeOf(t, e, "t"))
	assert.Equal(t, before["a"], activeOf(t, e, "a"))
}

func TestDiamondCoalescing(t *testing.T) {
	ctx := context.Background()
	obs := &observeRecorder{}
	e := newTestEngine(t, Options{Observer: obs})

	require.NoError(t, e.AddNode(ctx, "t", "trigger", map[string]any{"enabled": false}))
	for _, id := range []string{"l", "r", "join"} {
		require.NoError(t, e.AddNode(ctx, id, "gate", nil))
	}
	for _, c := range []graph.Connection{
		{SourceNodeID: "t", SourceHandleID: "out", TargetNodeID: "l", TargetHandleID: "in"},
		{SourceNodeID: "t", SourceHandleID: "out", TargetNodeID: "r", TargetHandleID: "in"},
		{SourceNodeID: "l", SourceHandleID: "out", TargetNodeID: "join", TargetHandleID: "in"},
		{SourceNodeID: "r", SourceHandleID: "out", TargetNodeID: "join", TargetHandleID: "in"},
	} {
		require.NoError(t, e.AddConnection(ctx, c))
	}

	obs.reset()
	require.NoError(t, e.SetNodeData(ctx, "t", map[string]any{"enabled": true}))

	assert.True(t, activeOf(t, e, "join"))
	// Both branches flip, but the join recomputes once: the second signal
	// coalesces into the queued entry.
	assert.Equal(t, 4, obs.lastRecomputed(), "t, l, r and join each recompute exactly once")
	assert.Equal(t, []string{"join"}, obs.coalescedNodes())
}

func TestFailureIsolation(t *testing.T) {
	ctx := context.Background()
	// A long base delay keeps the retry timer out of this test.
	e := newTestEngine(t, Options{Supervisor: supervisor.Options{BaseDelay: time.Hour, MaxDelay: time.Hour, MaxAttempts: 3}})

	require.NoError(t, e.AddNode(ctx, "t1", "trigger", map[string]any{"enabled": false}))
	require.NoError(t, e.AddNode(ctx, "x", "faulty", map[string]any{"broken": true}))
	require.NoError(t, e.AddNode(ctx, "t2", "trigger", map[string]any{"enabled": false}))
	require.NoError(t, e.AddNode(ctx, "y", "gate", nil))
	require.NoError(t, e.AddConnection(ctx, graph.Connection{
		SourceNodeID: "t1", SourceHandleID: "out", TargetNodeID: "x", TargetHandleID: "in",
	}))
	require.NoError(t, e.AddConnection(ctx, graph.Connection{
		SourceNodeID: "t2", SourceHandleID: "out", TargetNodeID: "y", TargetHandleID: "in",
	}))

	require.NoError(t, e.SetNodeData(ctx, "t1", map[string]any{"enabled": true}))
	require.NoError(t, e.SetNodeData(ctx, "t2", map[string]any{"enabled": true}))

	// The faulty node fails alone; the disjoint subgraph is untouched.
	assert.False(t, activeOf(t, e, "x"))
	assert.True(t, activeOf(t, e, "y"))
	assert.Equal(t, supervisor.Errored, e.Supervisor().StateOf("x"))
	assert.Equal(t, supervisor.Healthy, e.Supervisor().StateOf("y"))

	var compErr *ComputeError
	require.ErrorAs(t, e.Supervisor().LastError("x"), &compErr)
	assert.Equal(t, "x", compErr.NodeID)
}

func TestResetKeyRecovery(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{Supervisor: supervisor.Options{BaseDelay: time.Hour, MaxDelay: time.Hour, MaxAttempts: 3}})

	require.NoError(t, e.AddNode(ctx, "t", "trigger", map[string]any{"enabled": true}))
	require.NoError(t, e.AddNode(ctx, "x", "faulty", map[string]any{"broken": true}))
	require.NoError(t, e.AddConnection(ctx, graph.Connection{
		SourceNodeID: "t", SourceHandleID: "out", TargetNodeID: "x", TargetHandleID: "in",
	}))
	require.Equal(t, supervisor.Errored, e.Supervisor().StateOf("x"))

	// Changing the declared reset key recomputes immediately and recovers.
	require.NoError(t, e.SetNodeData(ctx, "x", map[string]any{"broken": false}))
	assert.True(t, activeOf(t, e, "x"))
	assert.Equal(t, supervisor.Healthy, e.Supervisor().StateOf("x"))
}

func TestGatedOffErroredNodeRecovers(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{Supervisor: supervisor.Options{BaseDelay: time.Hour, MaxDelay: time.Hour, MaxAttempts: 3}})

	require.NoError(t, e.AddNode(ctx, "t", "trigger", map[string]any{"enabled": true}))
	require.NoError(t, e.AddNode(ctx, "x", "faulty", map[string]any{"broken": true}))
	require.NoError(t, e.AddConnection(ctx, graph.Connection{
		SourceNodeID: "t", SourceHandleID: "out", TargetNodeID: "x", TargetHandleID: "in",
	}))
	require.Equal(t, supervisor.Errored, e.Supervisor().StateOf("x"))
	require.Equal(t, 1, e.Supervisor().Metrics().ActiveErrored)

	// Deactivating the upstream resolves x without running its compute; a
	// failure-free inactive recompute clears the error state instead of
	// pinning the node in the error listing.
	require.NoError(t, e.SetNodeData(ctx, "t", map[string]any{"enabled": false}))

	assert.False(t, activeOf(t, e, "x"))
	assert.Equal(t, supervisor.Healthy, e.Supervisor().StateOf("x"))
	assert.Zero(t, e.Supervisor().Metrics().ActiveErrored)
}

func TestManualRetry(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{Supervisor: supervisor.Options{BaseDelay: time.Hour, MaxDelay: time.Hour, MaxAttempts: 3}})

	require.NoError(t, e.AddNode(ctx, "t", "trigger", map[string]any{"enabled": true}))
	require.NoError(t, e.AddNode(ctx, "x", "faulty", map[string]any{"broken": true}))
	require.NoError(t, e.AddConnection(ctx, graph.Connection{
		SourceNodeID: "t", SourceHandleID: "out", TargetNodeID: "x", TargetHandleID: "in",
	}))

	require.Error(t, e.RetryNode(ctx, "missing"))

	before := e.Supervisor().ErrorCount("x")
	require.NoError(t, e.RetryNode(ctx, "x"))
	assert.Equal(t, before+1, e.Supervisor().ErrorCount("x"), "manual retry recomputes and fails again")
}

func TestComputeDataFlowsToStore(t *testing.T) {
	ctx := context.Background()
	st := inmemory.New()
	e := newTestEngine(t, Options{Store: st})

	require.NoError(t, e.AddNode(ctx, "t", "trigger", map[string]any{"enabled": false}))
	require.NoError(t, e.AddNode(ctx, "c", "counter", nil))
	require.NoError(t, e.AddConnection(ctx, graph.Connection{
		SourceNodeID: "t", SourceHandleID: "out", TargetNodeID: "c", TargetHandleID: "in",
	}))

	require.NoError(t, e.SetNodeData(ctx, "t", map[string]any{"enabled": true}))

	stored, err := st.NodeData(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 1, stored["count"])

	n, ok := e.Node("c")
	require.True(t, ok)
	assert.Equal(t, 1, n.Data["count"], "NextData merges into the node's own data")
}

func TestRemoveNodePurges(t *testing.T) {
	ctx := context.Background()
	st := inmemory.New()
	e := newTestEngine(t, Options{Store: st})
	buildChain(t, e)
	require.NoError(t, e.SetNodeData(ctx, "t", map[string]any{"enabled": true}))
	require.True(t, activeOf(t, e, "b"))

	require.NoError(t, e.RemoveNode(ctx, "a"))

	_, ok := e.Activation("a")
	assert.False(t, ok)
	// b lost its only upstream and becomes a head with no head predicate.
	assert.False(t, activeOf(t, e, "b"))
	assert.Len(t, e.Connections(), 0)

	stored, err := st.NodeData(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, stored)

	assert.ErrorAs(t, e.RemoveNode(ctx, "a"), new(*NotFoundError))
}

func TestRemoveConnection(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{})
	buildChain(t, e)
	require.NoError(t, e.SetNodeData(ctx, "t", map[string]any{"enabled": true}))
	require.True(t, activeOf(t, e, "a"))

	conn := graph.Connection{SourceNodeID: "t", SourceHandleID: "out", TargetNodeID: "a", TargetHandleID: "in"}
	require.NoError(t, e.RemoveConnection(ctx, conn))

	assert.False(t, activeOf(t, e, "a"))
	assert.False(t, activeOf(t, e, "b"))
	assert.ErrorAs(t, e.RemoveConnection(ctx, conn), new(*NotFoundError))
}

func TestAddConnectionValidation(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{})
	require.NoError(t, e.AddNode(ctx, "t", "trigger", nil))
	require.NoError(t, e.AddNode(ctx, "a", "gate", nil))
	require.NoError(t, e.AddNode(ctx, "b", "gate", nil))

	tests := []struct {
		name string
		conn graph.Connection
	}{
		{"unknown source node", graph.Connection{SourceNodeID: "nope", SourceHandleID: "out", TargetNodeID: "a", TargetHandleID: "in"}},
		{"unknown target node", graph.Connection{SourceNodeID: "t", SourceHandleID: "out", TargetNodeID: "nope", TargetHandleID: "in"}},
		{"unknown source handle", graph.Connection{SourceNodeID: "t", SourceHandleID: "nope", TargetNodeID: "a", TargetHandleID: "in"}},
		{"target handle used as source", graph.Connection{SourceNodeID: "a", SourceHandleID: "in", TargetNodeID: "b", TargetHandleID: "in"}},
		{"self connection", graph.Connection{SourceNodeID: "a", SourceHandleID: "out", TargetNodeID: "a", TargetHandleID: "in"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, e.AddConnection(ctx, tc.conn))
		})
	}

	conn := graph.Connection{SourceNodeID: "t", SourceHandleID: "out", TargetNodeID: "a", TargetHandleID: "in"}
	require.NoError(t, e.AddConnection(ctx, conn))
	assert.Error(t, e.AddConnection(ctx, conn), "duplicate edge")
}

func TestIncompatibleTypesRejected(t *testing.T) {
	ctx := context.Background()
	reg := testRegistry()
	reg.RegisterKind(&registry.Kind{
		Name: "texty",
		Handles: []graph.Handle{
			{ID: "in", Direction: graph.DirectionTarget, TypeCode: typecheck.TypeString, Required: true},
		},
	})
	e := New(reg, Options{})
	t.Cleanup(e.Close)

	require.NoError(t, e.AddNode(ctx, "t", "trigger", nil))
	require.NoError(t, e.AddNode(ctx, "s", "texty", nil))

	err := e.AddConnection(ctx, graph.Connection{
		SourceNodeID: "t", SourceHandleID: "out", TargetNodeID: "s", TargetHandleID: "in",
	})
	var verr *typecheck.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, typecheck.TypeBoolean, verr.SourceType)
}

func TestSubscriberFanout(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{})
	var got []string
	e.Subscribe(render.Func(func(ev event.Propagation) { got = append(got, "first:"+ev.NodeID) }))
	e.Subscribe(render.Func(func(ev event.Propagation) { got = append(got, "second:"+ev.NodeID) }))

	require.NoError(t, e.AddNode(ctx, "t", "trigger", map[string]any{"enabled": true}))
	assert.Equal(t, []string{"first:t", "second:t"}, got)
}
