// This file contains the logic for parsing HCL type expressions on handle
// declarations (e.g. `string`, `integer`, `json`) into handle type codes.

package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/flowgraph/internal/ctxlog"
	"github.com/vk/flowgraph/internal/typecheck"
)

// typeExprToCode converts an HCL type expression into its handle type code.
func typeExprToCode(ctx context.Context, expr hcl.Expression) (string, error) {
	logger := ctxlog.FromContext(ctx)

	if expr == nil {
		logger.Debug("Handle type expression is nil, defaulting to any.")
		return typecheck.TypeAny, nil
	}

	// Handle declarations use bare keywords, which decode as scope traversals.
	v, ok := expr.(*hclsyntax.ScopeTraversalExpr)
	if !ok {
		return "", fmt.Errorf("unsupported expression for handle type: %T", expr)
	}
	if len(v.Traversal) != 1 {
		return "", fmt.Errorf("invalid type keyword: traversal path is not a single identifier")
	}

	rootName := v.Traversal.RootName()
	logger.Debug("Parsing handle type keyword.", "keyword", rootName)

	// `bool` is accepted as an alias for the boolean code.
	if rootName == "bool" {
		return typecheck.TypeBoolean, nil
	}
	if !typecheck.Known(rootName) {
		return "", fmt.Errorf("unknown handle type %q", rootName)
	}
	return rootName, nil
}
