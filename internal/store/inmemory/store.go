// Package inmemory provides an ephemeral, thread-safe implementation of the
// store.Store interface backed by sync.Map. It is created fresh per engine
// session and optimized for the engine's write-heavy publish pattern: each
// node's record is independent, so fine-grained per-key access beats a
// global lock.
package inmemory

import (
	"context"
	"sync"

	"github.com/vk/flowgraph/internal/store"
)

// Store is the in-memory store.Store implementation.
type Store struct {
	records sync.Map // Key: node id string, Value: map[string]any
}

// New creates a new, empty in-memory store.
func New() store.Store {
	return &Store{}
}

// UpdateNodeData merges partial data into the node's record.
func (s *Store) UpdateNodeData(ctx context.Context, nodeID string, partial map[string]any) error {
	existing, _ := s.records.Load(nodeID)
	merged := make(map[string]any)
	if m, ok := existing.(map[string]any); ok {
		for k, v := range m {
			merged[k] = v
		}
	}
	for k, v := range partial {
		merged[k] = v
	}
	s.records.Store(nodeID, merged)
	return nil
}

// NodeData returns a copy of the node's record, or nil when absent.
func (s *Store) NodeData(ctx context.Context, nodeID string) (map[string]any, error) {
	v, ok := s.records.Load(nodeID)
	if !ok {
		return nil, nil
	}
	m := v.(map[string]any)
	out := make(map[string]any, len(m))
	for k, val := range m {
		out[k] = val
	}
	return out, nil
}

// Remove drops the node's record.
func (s *Store) Remove(ctx context.Context, nodeID string) error {
	s.records.Delete(nodeID)
	return nil
}
