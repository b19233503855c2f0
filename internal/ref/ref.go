package ref

import (
	"fmt"
	"regexp"
	"strings"
)

// Endpoint names one end of a connection: a node id plus a handle id on it.
type Endpoint struct {
	Node   string
	Handle string
}

// segmentRegex matches a single identifier segment.
var segmentRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Parse creates an Endpoint from its canonical "node.handle" string form.
func Parse(raw string) (Endpoint, error) {
	if raw == "" {
		return Endpoint{}, fmt.Errorf("endpoint reference cannot be empty")
	}

	idx := strings.LastIndex(raw, ".")
	if idx <= 0 || idx == len(raw)-1 {
		return Endpoint{}, fmt.Errorf("invalid endpoint reference %q: want \"node.handle\"", raw)
	}

	node, handle := raw[:idx], raw[idx+1:]
	for _, seg := range strings.Split(node, ".") {
		if !segmentRegex.MatchString(seg) {
			return Endpoint{}, fmt.Errorf("invalid node segment %q in endpoint %q", seg, raw)
		}
	}
	if !segmentRegex.MatchString(handle) {
		return Endpoint{}, fmt.Errorf("invalid handle segment %q in endpoint %q", handle, raw)
	}

	return Endpoint{Node: node, Handle: handle}, nil
}

// String renders the endpoint in its canonical form.
func (e Endpoint) String() string {
	return e.Node + "." + e.Handle
}
