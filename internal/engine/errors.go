package engine

import "fmt"

// ComputeError wraps a failure thrown inside a node's compute contract. It
// is recorded per node and never aborts the settle pass.
type ComputeError struct {
	NodeID string
	Err    error
}

// Error implements the error interface.
func (e *ComputeError) Error() string {
	return fmt.Sprintf("compute failed for node %q: %v", e.NodeID, e.Err)
}

// Unwrap exposes the underlying failure.
func (e *ComputeError) Unwrap() error {
	return e.Err
}

// NotFoundError is returned by mutation entry points referencing unknown
// nodes or connections.
type NotFoundError struct {
	What string
	ID   string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.What, e.ID)
}
