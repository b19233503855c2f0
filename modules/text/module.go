// Package text provides the text template kind. It renders its template
// whenever an active value reaches it and emits the result downstream.
package text

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/flowgraph/internal/graph"
	"github.com/vk/flowgraph/internal/registry"
	"github.com/vk/flowgraph/internal/typecheck"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the text kind with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind(&registry.Kind{
		Name: "text",
		Handles: []graph.Handle{
			{ID: "in", Direction: graph.DirectionTarget, TypeCode: typecheck.TypeAny, Position: "left", Required: true},
			{ID: "out", Direction: graph.DirectionSource, TypeCode: typecheck.TypeString, Position: "right"},
		},
		ResetKeys: []string{"template"},
		Compute:   compute,
	})
}

// compute renders the template, substituting {handle} placeholders with the
// active input values.
func compute(_ context.Context, data, activeInputs map[string]any) (*registry.ComputeResult, error) {
	template, _ := data["template"].(string)

	rendered := template
	for handleID, value := range activeInputs {
		rendered = strings.ReplaceAll(rendered, "{"+handleID+"}", fmt.Sprintf("%v", value))
	}

	return &registry.ComputeResult{
		NextData: map[string]any{"rendered": rendered},
		Outputs:  map[string]any{"out": rendered},
	}, nil
}
