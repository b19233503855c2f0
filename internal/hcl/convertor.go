package hcl

import (
	"fmt"
	"math/big"

	"github.com/zclconf/go-cty/cty"
)

// ctyValueToInterface recursively converts a cty.Value into plain Go values
// (bool, float64 or int64, string, []any, map[string]any), which is the shape
// node data travels in through the compute contract.
func ctyValueToInterface(val cty.Value) (any, error) {
	if val.IsNull() {
		return nil, nil
	}
	if !val.IsKnown() {
		return nil, fmt.Errorf("cannot convert unknown value")
	}

	ty := val.Type()
	switch {
	case ty == cty.String:
		return val.AsString(), nil

	case ty == cty.Bool:
		return val.True(), nil

	case ty == cty.Number:
		bf := val.AsBigFloat()
		if i, acc := bf.Int64(); acc == big.Exact {
			return i, nil
		}
		f, _ := bf.Float64()
		return f, nil

	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		out := make([]any, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			converted, err := ctyValueToInterface(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, converted)
		}
		return out, nil

	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			key, elem := it.Element()
			converted, err := ctyValueToInterface(elem)
			if err != nil {
				return nil, err
			}
			out[key.AsString()] = converted
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported cty type %s", ty.FriendlyName())
	}
}

// ctyValueToDataMap converts a node's `data` object expression result into
// the map form the engine stores on the node record.
func ctyValueToDataMap(val cty.Value) (map[string]any, error) {
	if val.IsNull() {
		return map[string]any{}, nil
	}
	converted, err := ctyValueToInterface(val)
	if err != nil {
		return nil, err
	}
	m, ok := converted.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("node data must be an object, got %T", converted)
	}
	return m, nil
}
