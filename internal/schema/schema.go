// Package schema declares the gohcl decoding targets for graph definition
// files and node-kind manifest files.
package schema

import (
	"github.com/hashicorp/hcl/v2"
)

// --- Graph definition structures ---

// NodeBlock represents a `node` block from a user's graph file.
type NodeBlock struct {
	Kind string         `hcl:"kind,label"`
	Name string         `hcl:"instance_name,label"`
	Data hcl.Expression `hcl:"data,optional"`
}

// ConnectionBlock represents a `connection` block. Source and target are
// "node.handle" endpoint references.
type ConnectionBlock struct {
	Source string `hcl:"source"`
	Target string `hcl:"target"`
}

// GraphConfig represents the top-level structure of a graph file.
type GraphConfig struct {
	Nodes       []*NodeBlock       `hcl:"node,block"`
	Connections []*ConnectionBlock `hcl:"connection,block"`
	Kinds       []*KindBlock       `hcl:"kind,block"`
	Body        hcl.Body           `hcl:",remain"`
}

// --- Node-kind manifest structures ---

// HandleBlock declares a single typed connection point of a kind.
type HandleBlock struct {
	ID       string         `hcl:"id,label"`
	Type     hcl.Expression `hcl:"type"`
	Position string         `hcl:"position,optional"`
	Required *bool          `hcl:"required,optional"`
}

// KindBlock represents the manifest for one node kind: its category and its
// handle schema. The matching compute handler is registered from Go.
type KindBlock struct {
	Name        string         `hcl:"name,label"`
	Category    string         `hcl:"category,optional"`
	Description string         `hcl:"description,optional"`
	Inputs      []*HandleBlock `hcl:"input,block"`
	Outputs     []*HandleBlock `hcl:"output,block"`
	ResetKeys   []string       `hcl:"reset_keys,optional"`
}
