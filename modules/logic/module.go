// Package logic provides the boolean gate kinds: and, or, not. Gates carry
// no compute contract; they only shape activation flow.
package logic

import (
	"github.com/vk/flowgraph/internal/graph"
	"github.com/vk/flowgraph/internal/registry"
	"github.com/vk/flowgraph/internal/typecheck"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

func boolIn(id string) graph.Handle {
	return graph.Handle{ID: id, Direction: graph.DirectionTarget, TypeCode: typecheck.TypeBoolean, Position: "left", Required: true}
}

func boolOut() graph.Handle {
	return graph.Handle{ID: "out", Direction: graph.DirectionSource, TypeCode: typecheck.TypeBoolean, Position: "right"}
}

// Register registers the three gate kinds with the engine.
func (m *Module) Register(r *registry.Registry) {
	// logic.and relies on the default downstream predicate: every connected
	// required input must carry an active value.
	r.RegisterKind(&registry.Kind{
		Name:    "logic.and",
		Handles: []graph.Handle{boolIn("in_a"), boolIn("in_b"), boolOut()},
	})

	r.RegisterKind(&registry.Kind{
		Name:    "logic.or",
		Handles: []graph.Handle{boolIn("in_a"), boolIn("in_b"), boolOut()},
		Downstream: func(_ map[string]any, activeInputs map[string]any) (bool, error) {
			return len(activeInputs) > 0, nil
		},
	})

	// logic.not inverts: active exactly while no active value reaches it.
	r.RegisterKind(&registry.Kind{
		Name:    "logic.not",
		Handles: []graph.Handle{boolIn("in"), boolOut()},
		Downstream: func(_ map[string]any, activeInputs map[string]any) (bool, error) {
			return len(activeInputs) == 0, nil
		},
	})
}
