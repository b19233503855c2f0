// Package hcl implements config.Loader for HCL files. It parses graph
// definition files (node and connection blocks) and node-kind manifests
// (kind blocks with typed input/output handle declarations) into the unified
// config model, translating HCL type expressions into handle type codes and
// cty data values into plain Go values.
package hcl
