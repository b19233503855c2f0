// Package registry holds the node-kind registry: for every kind, its handle
// schema (typed connection points from the HCL manifest), its category, its
// activation predicates, and its compute contract implementation registered
// from Go. The registry is populated once at startup; Validate performs a
// strict parity check between manifests and Go handlers before the engine is
// allowed to run.
package registry
