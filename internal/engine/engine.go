package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vk/flowgraph/internal/activation"
	"github.com/vk/flowgraph/internal/ctxlog"
	"github.com/vk/flowgraph/internal/graph"
	"github.com/vk/flowgraph/internal/observe"
	"github.com/vk/flowgraph/internal/registry"
	"github.com/vk/flowgraph/internal/render"
	"github.com/vk/flowgraph/internal/store"
	"github.com/vk/flowgraph/internal/supervisor"
)

// Options tunes a single engine instance.
type Options struct {
	// BatchThreshold is the node count above which child enqueueing is
	// deferred to end-of-wave batches. Defaults to 200.
	BatchThreshold int
	// PassBudget bounds one settle pass; work left over is kept and resumed
	// by the next mutation or Retrigger. Defaults to 50ms.
	PassBudget time.Duration
	// Supervisor tunes error recovery scheduling.
	Supervisor supervisor.Options
	// Store receives computed node data; defaults to the no-op adapter.
	Store store.Store
	// Observer receives measurements; defaults to the no-op observer.
	Observer observe.Observer
	// Logger backs supervisor-initiated retry turns, which have no inbound
	// request context. Defaults to slog.Default.
	Logger *slog.Logger
	// Now supplies timestamps. Defaults to time.Now.
	Now func() time.Time
}

const (
	defaultBatchThreshold = 200
	defaultPassBudget     = 50 * time.Millisecond
)

// Engine is the propagation orchestrator. One mutex serializes every
// mutation turn, so node compute and predicates never run concurrently.
type Engine struct {
	mu sync.Mutex

	reg   *registry.Registry
	calc  *activation.Calculator
	sup   *supervisor.Supervisor
	store store.Store
	obs   observe.Observer
	log   *slog.Logger
	now   func() time.Time

	batchThreshold int
	passBudget     time.Duration

	nodes   map[string]*graph.Node
	conns   []graph.Connection
	topo    *graph.Topology
	outputs map[string]map[string]any

	subs    []render.Subscriber
	pending []string
	tick    uint64

	// calcFailed records that the calculator's error hook fired during the
	// current recompute; it decides whether an inactive result clears the
	// node's error state.
	calcFailed bool
}

// New creates an engine over the given kind registry.
func New(reg *registry.Registry, opts Options) *Engine {
	if opts.BatchThreshold <= 0 {
		opts.BatchThreshold = defaultBatchThreshold
	}
	if opts.PassBudget <= 0 {
		opts.PassBudget = defaultPassBudget
	}
	if opts.Store == nil {
		opts.Store = store.Nop{}
	}
	if opts.Observer == nil {
		opts.Observer = observe.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	e := &Engine{
		reg:            reg,
		store:          opts.Store,
		obs:            opts.Observer,
		log:            opts.Logger,
		now:            opts.Now,
		batchThreshold: opts.BatchThreshold,
		passBudget:     opts.PassBudget,
		nodes:          make(map[string]*graph.Node),
		topo:           graph.BuildTopology(nil),
		outputs:        make(map[string]map[string]any),
	}
	e.calc = activation.New(reg, activation.Options{
		Now: opts.Now,
		OnError: func(ctx context.Context, nodeID string, err error) {
			e.calcFailed = true
			e.sup.ReportFailure(ctx, nodeID, err)
		},
	})
	e.sup = supervisor.New(opts.Supervisor, e.retryFromSupervisor, opts.Observer)
	return e
}

// Subscribe registers a Tier-1 propagation subscriber. Subscribers added
// mid-flight start receiving events from the next settle pass.
func (e *Engine) Subscribe(sub render.Subscriber) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs = append(e.subs, sub)
}

// Supervisor exposes the error supervisor for state queries and manual
// retries.
func (e *Engine) Supervisor() *supervisor.Supervisor {
	return e.sup
}

// Node returns a copy of a node's current state.
func (e *Engine) Node(nodeID string) (graph.Node, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.nodes[nodeID]
	if !ok {
		return graph.Node{}, false
	}
	cp := *n
	cp.Data = make(map[string]any, len(n.Data))
	for k, v := range n.Data {
		cp.Data[k] = v
	}
	return cp, true
}

// Nodes returns copies of every node in the working set.
func (e *Engine) Nodes() []graph.Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]graph.Node, 0, len(e.nodes))
	for _, n := range e.nodes {
		cp := *n
		cp.Data = make(map[string]any, len(n.Data))
		for k, v := range n.Data {
			cp.Data[k] = v
		}
		out = append(out, cp)
	}
	return out
}

// Connections returns a copy of the current connection list.
func (e *Engine) Connections() []graph.Connection {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]graph.Connection, len(e.conns))
	copy(out, e.conns)
	return out
}

// Activation returns a node's current activation.
func (e *Engine) Activation(nodeID string) (bool, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.nodes[nodeID]
	if !ok {
		return false, false
	}
	return n.IsActive, true
}

// CacheStats returns the activation cache counters.
func (e *Engine) CacheStats() activation.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calc.Stats()
}

// Close releases the supervisor's pending retry timers.
func (e *Engine) Close() {
	e.sup.Close()
}

// retryFromSupervisor is the supervisor's way back into the mutation
// surface. It runs on a timer goroutine and takes a fresh turn.
func (e *Engine) retryFromSupervisor(nodeID string) {
	ctx := ctxlog.WithLogger(context.Background(), e.log)

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.nodes[nodeID]; !ok {
		return
	}
	e.calc.Invalidate(nodeID)
	e.settleLocked(ctx, []string{nodeID})
}

// envView exposes the engine's working set to the activation calculator
// without taking the engine lock; it is only used inside a settle pass.
type envView struct {
	e *Engine
}

func (v envView) NodeActive(nodeID string) bool {
	n, ok := v.e.nodes[nodeID]
	return ok && n.IsActive
}

func (v envView) Output(nodeID, handleID string) (any, bool) {
	out, ok := v.e.outputs[nodeID]
	if !ok {
		return nil, false
	}
	val, ok := out[handleID]
	return val, ok
}
