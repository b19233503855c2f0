package typecheck

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// The set of handle type codes understood by the lattice.
const (
	TypeAny       = "any"
	TypeString    = "string"
	TypeNumber    = "number"
	TypeInteger   = "integer"
	TypeFloat     = "float"
	TypeBoolean   = "boolean"
	TypeJSON      = "json"
	TypeArray     = "array"
	TypeNull      = "null"
	TypeUndefined = "undefined"
)

// Confidence describes how a compatibility verdict was reached.
type Confidence string

const (
	// ConfidenceExact means the codes matched directly or via the "any" wildcard.
	ConfidenceExact Confidence = "exact"
	// ConfidenceHeuristic means the codes are connectable through an assumed
	// structural coercion (json<->string/array, integer<->float).
	ConfidenceHeuristic Confidence = "heuristic"
)

// Result is the verdict for a single (source, target) code pair.
type Result struct {
	Compatible bool
	Confidence Confidence
	Reason     string
}

// ValidationError is returned when a connection is rejected at creation time
// because its handle type codes are incompatible.
type ValidationError struct {
	SourceType string
	TargetType string
	Reason     string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("incompatible handle types %q -> %q: %s", e.SourceType, e.TargetType, e.Reason)
}

// nullLike reports whether a code can never carry a concrete value.
func nullLike(code string) bool {
	return code == TypeNull || code == TypeUndefined
}

// numeric reports whether a code belongs to the numeric subtype family.
func numeric(code string) bool {
	return code == TypeNumber || code == TypeInteger || code == TypeFloat
}

// jsonCoercible reports whether a code participates in the json structural
// coercion heuristic.
func jsonCoercible(code string) bool {
	return code == TypeString || code == TypeArray
}

// Check decides whether a source handle of type `from` may feed a target
// handle of type `to`. It is pure and deterministic: the verdict depends only
// on the two codes. Rules are applied in priority order; the first match wins.
func Check(from, to string) Result {
	switch {
	case from == to:
		return Result{Compatible: true, Confidence: ConfidenceExact, Reason: "identical type codes"}

	case from == TypeAny || to == TypeAny:
		return Result{Compatible: true, Confidence: ConfidenceExact, Reason: "universal any type"}

	case nullLike(from) || nullLike(to):
		return Result{Compatible: false, Confidence: ConfidenceExact, Reason: "null-like types carry no value"}

	case from == TypeJSON && jsonCoercible(to), to == TypeJSON && jsonCoercible(from):
		return Result{Compatible: true, Confidence: ConfidenceHeuristic, Reason: "json structural coercion"}

	case numeric(from) && numeric(to):
		return Result{Compatible: true, Confidence: ConfidenceHeuristic, Reason: "numeric subtype conversion"}

	default:
		return Result{Compatible: false, Confidence: ConfidenceExact, Reason: "no rule connects these types"}
	}
}

// Validate is the edge-creation gate. It returns a *ValidationError when the
// pair is incompatible and nil otherwise, so callers can report the rejection
// instead of silently dropping the connection.
func Validate(from, to string) error {
	res := Check(from, to)
	if res.Compatible {
		return nil
	}
	return &ValidationError{SourceType: from, TargetType: to, Reason: res.Reason}
}

// Known reports whether a code is part of the lattice.
func Known(code string) bool {
	switch code {
	case TypeAny, TypeString, TypeNumber, TypeInteger, TypeFloat,
		TypeBoolean, TypeJSON, TypeArray, TypeNull, TypeUndefined:
		return true
	}
	return false
}

// CtyType maps a handle type code onto its cty equivalent. The registry's
// parity validation uses it to check that every declared handle carries a
// code with a cty shape. Codes without a concrete cty shape (any, json,
// null-like) map to the dynamic pseudo type.
func CtyType(code string) (cty.Type, bool) {
	switch code {
	case TypeString:
		return cty.String, true
	case TypeNumber, TypeInteger, TypeFloat:
		return cty.Number, true
	case TypeBoolean:
		return cty.Bool, true
	case TypeArray:
		return cty.List(cty.DynamicPseudoType), true
	case TypeJSON, TypeAny, TypeNull, TypeUndefined:
		return cty.DynamicPseudoType, true
	}
	return cty.NilType, false
}
