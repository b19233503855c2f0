package graph

import (
	"sort"
	"strings"
)

// Topology is the adjacency index derived from a connection list. It is
// immutable after construction; the engine swaps in a fresh index whenever
// the connection list changes.
type Topology struct {
	// incoming maps a target node id to the connections feeding it.
	incoming map[string][]Connection
	// outgoing maps a source node id to the connections leaving it.
	outgoing map[string][]Connection
	// signature is the sorted tuple list over all connections.
	signature string
	// incomingSig caches the per-node sorted tuple list over incoming edges.
	incomingSig map[string]string
}

// BuildTopology derives a fresh adjacency index from the given connection
// list in a single O(E) pass (plus the sort for stable signatures).
func BuildTopology(conns []Connection) *Topology {
	t := &Topology{
		incoming:    make(map[string][]Connection),
		outgoing:    make(map[string][]Connection),
		incomingSig: make(map[string]string),
	}

	tuples := make([]string, 0, len(conns))
	for _, c := range conns {
		t.incoming[c.TargetNodeID] = append(t.incoming[c.TargetNodeID], c)
		t.outgoing[c.SourceNodeID] = append(t.outgoing[c.SourceNodeID], c)
		tuples = append(tuples, c.String())
	}
	sort.Strings(tuples)
	t.signature = strings.Join(tuples, "|")

	for nodeID, in := range t.incoming {
		nodeTuples := make([]string, 0, len(in))
		for _, c := range in {
			nodeTuples = append(nodeTuples, c.String())
		}
		sort.Strings(nodeTuples)
		t.incomingSig[nodeID] = strings.Join(nodeTuples, "|")
	}

	return t
}

// ParentsOf returns the incoming connections of a node, optionally filtered
// by target handle id. A nil filter keeps every incoming connection. The
// returned slice is sorted by signature tuple for deterministic iteration.
func (t *Topology) ParentsOf(nodeID string, handleFilter func(targetHandleID string) bool) []Connection {
	in := t.incoming[nodeID]
	out := make([]Connection, 0, len(in))
	for _, c := range in {
		if handleFilter == nil || handleFilter(c.TargetHandleID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// ChildrenOf returns the ids of all direct dependents of a node, deduplicated
// and sorted. A node connected through several handles appears once.
func (t *Topology) ChildrenOf(nodeID string) []string {
	seen := make(map[string]struct{})
	var children []string
	for _, c := range t.outgoing[nodeID] {
		if _, ok := seen[c.TargetNodeID]; ok {
			continue
		}
		seen[c.TargetNodeID] = struct{}{}
		children = append(children, c.TargetNodeID)
	}
	sort.Strings(children)
	return children
}

// HasIncoming reports whether any connection targets the node.
func (t *Topology) HasIncoming(nodeID string) bool {
	return len(t.incoming[nodeID]) > 0
}

// Signature returns the stable sorted tuple list over the whole connection
// list. Two topologies built from the same set of connections, in any order,
// share a signature.
func (t *Topology) Signature() string {
	return t.signature
}

// IncomingSignature returns the stable tuple list over a single node's
// incoming edges. It changes only when that node's own wiring changes, which
// keeps unrelated cache entries valid across distant mutations.
func (t *Topology) IncomingSignature(nodeID string) string {
	return t.incomingSig[nodeID]
}
