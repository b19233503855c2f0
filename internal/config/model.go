package config

// Model is the unified result of loading all configuration paths: the initial
// graph (nodes and connections) plus any node-kind manifests found alongside.
type Model struct {
	Nodes       []*Node
	Connections []*Connection
	Kinds       map[string]*Kind
}

// Node is one `node` block from a graph file.
type Node struct {
	// ID is the instance name, unique across the graph.
	ID string
	// Kind names the registered node kind.
	Kind string
	// Data is the node's own data, already converted to plain Go values.
	Data map[string]any
}

// Connection is one `connection` block, with both endpoint references
// already resolved into node and handle ids.
type Connection struct {
	SourceNode   string
	SourceHandle string
	TargetNode   string
	TargetHandle string
}

// Kind is a node-kind manifest: the handle schema the registry validates
// against the Go handler registered under the same name.
type Kind struct {
	Name        string
	Category    string
	Description string
	Handles     []*Handle
	ResetKeys   []string
}

// Handle is one declared connection point of a kind.
type Handle struct {
	ID        string
	Direction string
	TypeCode  string
	Position  string
	Required  bool
}

// NewModel returns an empty model with initialized maps.
func NewModel() *Model {
	return &Model{Kinds: make(map[string]*Kind)}
}

// Merge folds another model into this one. Later kinds win on name collision.
func (m *Model) Merge(other *Model) {
	m.Nodes = append(m.Nodes, other.Nodes...)
	m.Connections = append(m.Connections, other.Connections...)
	for name, k := range other.Kinds {
		m.Kinds[name] = k
	}
}
