package registry

import (
	"context"
	"sort"

	"github.com/vk/flowgraph/internal/config"
	"github.com/vk/flowgraph/internal/graph"
)

// Category tags a kind's role in activation, resolved once at registration.
type Category string

const (
	// CategoryTrigger kinds start flows; they are always treated as head nodes.
	CategoryTrigger Category = "trigger"
	// CategoryCycle kinds are allowed to sit inside cyclic subgraphs.
	CategoryCycle Category = "cycle"
	// CategoryStandard is everything else.
	CategoryStandard Category = "standard"
)

// HeadPredicate decides activation for a node with no activation-relevant
// incoming connections. Pure function of the node's own data.
type HeadPredicate func(data map[string]any) (bool, error)

// DownstreamPredicate decides activation from own data plus the active
// upstream outputs keyed by target handle id.
type DownstreamPredicate func(data map[string]any, activeInputs map[string]any) (bool, error)

// ComputeResult is what a kind's compute contract hands back to the engine.
type ComputeResult struct {
	// NextData is merged into the node's own data by the engine.
	NextData map[string]any
	// Outputs are the emitted values keyed by source handle id; they become
	// visible to downstream nodes while this node stays active.
	Outputs map[string]any
}

// ComputeFunc is the uniform compute contract each node kind implements. It
// must be pure and side-effect-isolated; the engine alone decides when to
// call it and writes the result back. It is never invoked concurrently for
// the same node.
type ComputeFunc func(ctx context.Context, data map[string]any, activeInputs map[string]any) (*ComputeResult, error)

// Kind bundles everything the engine needs to know about one node kind.
type Kind struct {
	Name      string
	Category  Category
	Handles   []graph.Handle
	ResetKeys []string

	// Head and Downstream override the default activation predicates. A nil
	// Head leaves a head node inactive; a nil Downstream applies AND across
	// connected required inputs.
	Head       HeadPredicate
	Downstream DownstreamPredicate

	// Compute is optional; kinds without one only gate activation.
	Compute ComputeFunc
}

// Handle returns the declared handle with the given id.
func (k *Kind) Handle(id string) (graph.Handle, bool) {
	for _, h := range k.Handles {
		if h.ID == id {
			return h, true
		}
	}
	return graph.Handle{}, false
}

// RequiredInputs returns the ids of the activation-relevant target handles.
func (k *Kind) RequiredInputs() []string {
	var ids []string
	for _, h := range k.Handles {
		if h.Direction == graph.DirectionTarget && h.Required {
			ids = append(ids, h.ID)
		}
	}
	return ids
}

// Module is the interface node-kind packages implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds all registered kinds for a single engine instance.
type Registry struct {
	kinds map[string]*Kind
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{kinds: make(map[string]*Kind)}
}

// RegisterKind adds or replaces a kind. Later registrations win, which lets
// tests override built-ins.
func (r *Registry) RegisterKind(k *Kind) {
	if k.Category == "" {
		k.Category = CategoryStandard
	}
	r.kinds[k.Name] = k
}

// Kind looks up a registered kind by name.
func (r *Registry) Kind(name string) (*Kind, bool) {
	k, ok := r.kinds[name]
	return k, ok
}

// Names returns the sorted names of all registered kinds.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.kinds))
	for name := range r.kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyManifests merges the handle schemas declared in kind manifests into
// the Go-registered kinds. The manifest owns the handle schema; Go code owns
// predicates and the compute contract.
func (r *Registry) ApplyManifests(model *config.Model) {
	for name, def := range model.Kinds {
		k, ok := r.kinds[name]
		if !ok {
			// Recorded as a parity error in Validate.
			continue
		}
		k.Handles = k.Handles[:0]
		for _, h := range def.Handles {
			k.Handles = append(k.Handles, graph.Handle{
				ID:        h.ID,
				Direction: graph.Direction(h.Direction),
				TypeCode:  h.TypeCode,
				Position:  h.Position,
				Required:  h.Required,
			})
		}
		if def.Category != "" {
			k.Category = Category(def.Category)
		}
		if len(def.ResetKeys) > 0 {
			k.ResetKeys = def.ResetKeys
		}
	}
}
