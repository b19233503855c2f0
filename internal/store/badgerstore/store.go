// Package badgerstore provides a BadgerDB-backed implementation of the
// store.Store interface for engines that need computed node data to survive
// restarts. Records are JSON documents keyed by node id.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/vk/flowgraph/internal/store"
)

const keyPrefix = "node/"

// Config holds configuration for a badger-backed store.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string
	// InMemory enables in-memory mode (no disk persistence). Useful for testing.
	InMemory bool
	// Logger receives BadgerDB's own log output. If nil, badger logging is
	// disabled entirely.
	Logger *slog.Logger
}

// Store is the badger-backed store.Store implementation.
type Store struct {
	db *badger.DB
}

// Open creates or opens the database directory and returns the store.
func Open(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path).WithInMemory(cfg.InMemory)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&slogAdapter{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpdateNodeData merges partial data into the stored JSON record.
func (s *Store) UpdateNodeData(ctx context.Context, nodeID string, partial map[string]any) error {
	key := []byte(keyPrefix + nodeID)
	return s.db.Update(func(txn *badger.Txn) error {
		merged := make(map[string]any)

		item, err := txn.Get(key)
		switch {
		case err == nil:
			err = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &merged)
			})
			if err != nil {
				return fmt.Errorf("decoding record for %q: %w", nodeID, err)
			}
		case errors.Is(err, badger.ErrKeyNotFound):
			// First write for this node.
		default:
			return err
		}

		for k, v := range partial {
			merged[k] = v
		}
		encoded, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("encoding record for %q: %w", nodeID, err)
		}
		return txn.Set(key, encoded)
	})
}

// NodeData returns the stored record for a node, or nil when absent.
func (s *Store) NodeData(ctx context.Context, nodeID string) (map[string]any, error) {
	var out map[string]any
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + nodeID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Remove drops the stored record for a node.
func (s *Store) Remove(ctx context.Context, nodeID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + nodeID))
	})
}

var _ store.Store = (*Store)(nil)

// slogAdapter bridges badger's logger interface onto slog.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Errorf(format string, args ...any) {
	a.logger.Error(fmt.Sprintf(format, args...))
}

func (a *slogAdapter) Warningf(format string, args ...any) {
	a.logger.Warn(fmt.Sprintf(format, args...))
}

func (a *slogAdapter) Infof(format string, args ...any) {
	a.logger.Info(fmt.Sprintf(format, args...))
}

func (a *slogAdapter) Debugf(format string, args ...any) {
	a.logger.Debug(fmt.Sprintf(format, args...))
}
