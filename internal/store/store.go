// Package store defines the persistence adapter the engine publishes
// computed node data through. The adapter owns actual storage and sync; the
// engine only ever calls the documented entry points, and never from Tier 1
// of a propagation pass.
package store

import "context"

// Store receives computed node data updates. Implementations must tolerate
// updates for nodes they have never seen.
type Store interface {
	// UpdateNodeData merges partial data into the stored record for a node.
	UpdateNodeData(ctx context.Context, nodeID string, partial map[string]any) error
	// NodeData returns the stored record for a node, or nil when absent.
	NodeData(ctx context.Context, nodeID string) (map[string]any, error)
	// Remove drops the stored record for a node.
	Remove(ctx context.Context, nodeID string) error
}

// Nop discards all updates. It is the default adapter.
type Nop struct{}

func (Nop) UpdateNodeData(context.Context, string, map[string]any) error { return nil }

func (Nop) NodeData(context.Context, string) (map[string]any, error) { return nil, nil }

func (Nop) Remove(context.Context, string) error { return nil }
