package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/flowgraph/internal/config"
	"github.com/vk/flowgraph/internal/ctxlog"
	"github.com/vk/flowgraph/internal/graph"
	"github.com/vk/flowgraph/internal/typecheck"
)

// Validate performs a strict parity check between manifests and Go code and
// verifies every declared handle: known type code, valid direction, unique id
// within its kind.
func (r *Registry) Validate(ctx context.Context, model *config.Model) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for name := range model.Kinds {
		if _, ok := r.kinds[name]; !ok {
			errs = append(errs, fmt.Sprintf("kind %q: manifest present but no Go handler registered", name))
		}
	}

	for name, k := range r.kinds {
		if _, ok := model.Kinds[name]; !ok && len(k.Handles) == 0 {
			errs = append(errs, fmt.Sprintf("kind %q: Go handler registered but no manifest declares its handles", name))
			continue
		}

		switch k.Category {
		case CategoryTrigger, CategoryCycle, CategoryStandard:
		default:
			errs = append(errs, fmt.Sprintf("kind %q: unknown category %q", name, k.Category))
		}

		if k.Category == CategoryTrigger && k.Head == nil {
			logger.Warn("Trigger kind has no head predicate; its nodes will stay inactive.", "kind", name)
		}

		seen := make(map[string]struct{}, len(k.Handles))
		for _, h := range k.Handles {
			if _, dup := seen[h.ID]; dup {
				errs = append(errs, fmt.Sprintf("kind %q: duplicate handle id %q", name, h.ID))
			}
			seen[h.ID] = struct{}{}

			if h.Direction != graph.DirectionSource && h.Direction != graph.DirectionTarget {
				errs = append(errs, fmt.Sprintf("kind %q, handle %q: invalid direction %q", name, h.ID, h.Direction))
			}
			if _, ok := typecheck.CtyType(h.TypeCode); !ok {
				errs = append(errs, fmt.Sprintf("kind %q, handle %q: unknown type code %q", name, h.ID, h.TypeCode))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
