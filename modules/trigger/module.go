// Package trigger provides the manual trigger kind: the canonical flow
// starter, toggled through its own data.
package trigger

import (
	"github.com/vk/flowgraph/internal/graph"
	"github.com/vk/flowgraph/internal/registry"
	"github.com/vk/flowgraph/internal/typecheck"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the trigger kind with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind(&registry.Kind{
		Name:     "trigger",
		Category: registry.CategoryTrigger,
		Handles: []graph.Handle{
			{ID: "out", Direction: graph.DirectionSource, TypeCode: typecheck.TypeBoolean, Position: "right"},
		},
		ResetKeys: []string{"enabled"},
		Head: func(data map[string]any) (bool, error) {
			enabled, _ := data["enabled"].(bool)
			return enabled, nil
		},
	})
}
