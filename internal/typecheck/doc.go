// Package typecheck implements the handle type-code lattice used to decide
// whether two handles may be connected. Every handle declared in a node-kind
// manifest carries a type code (string, integer, json, any, ...); before an
// edge is persisted the engine asks this package whether the source and
// target codes are compatible.
//
// The check is a pure O(1) lookup: an exact tier (identical codes, or either
// side is the universal "any" code) and a heuristic tier (json is structurally
// coercible to string and array, integer and float are mutually convertible).
// Null-like codes never connect to anything concrete.
//
// Type codes also map onto cty types via CtyType, which is how the registry
// parity validation reasons about declared handles.
package typecheck
