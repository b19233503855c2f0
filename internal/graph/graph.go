package graph

import "fmt"

// Direction tells whether a handle emits values (source) or accepts them (target).
type Direction string

const (
	DirectionSource Direction = "source"
	DirectionTarget Direction = "target"
)

// Handle is a typed, named connection point declared statically per node
// kind. Handle ids are unique within a node.
type Handle struct {
	ID        string
	Direction Direction
	TypeCode  string
	Position  string
	// Required marks a target handle as activation-relevant: when connected,
	// the default downstream predicate demands an active value on it.
	Required bool
}

// Node is a single vertex in the working set. Data is owned by node-kind
// logic and flows through the compute contract; the engine only writes back
// IsActive and computed output fields.
type Node struct {
	ID       string
	Kind     string
	Data     map[string]any
	IsActive bool
	// IsHead is derived: true while the node has no activation-relevant
	// incoming connections.
	IsHead bool
}

// Connection is a directional edge between a source handle on one node and a
// target handle on another. Connections are immutable once created; graph
// edits replace the connection list wholesale.
type Connection struct {
	SourceNodeID   string
	SourceHandleID string
	TargetNodeID   string
	TargetHandleID string
}

// String renders the connection as its canonical signature tuple.
func (c Connection) String() string {
	return fmt.Sprintf("%s.%s->%s.%s", c.SourceNodeID, c.SourceHandleID, c.TargetNodeID, c.TargetHandleID)
}
