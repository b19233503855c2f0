// Package ref parses the "node.handle" endpoint references used in graph
// definition files and the mutation API to name a connection's source or
// target.
package ref
