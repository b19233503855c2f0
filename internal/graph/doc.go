// Package graph holds the engine's working-set data model: nodes, typed
// handles, directional connections, and the topology index derived from the
// current connection list.
//
// The topology index is rebuilt in O(E) whenever the connection list identity
// changes, never on plain node-data mutations. It answers parent/child
// adjacency queries and exposes stable connection signatures (sorted tuple
// lists) that the activation calculator folds into its cache keys, so a
// mutation in one part of the graph does not invalidate unrelated cached
// activation records.
package graph
