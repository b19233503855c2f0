package activation

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/vk/flowgraph/internal/graph"
)

// DataSignature produces a stable fingerprint of a node's own data. It
// returns the empty string when the data cannot be canonicalized; callers
// treat that as a corrupt cache entry and force a recompute.
func DataSignature(data map[string]any) string {
	// encoding/json writes map keys in sorted order, which makes the
	// marshalled form canonical for signature purposes.
	b, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return hash(b)
}

// upstreamSignature fingerprints the active upstream state feeding a node:
// for every relevant incoming connection, whether its source is active and
// what value it currently emits on the connected handle.
func upstreamSignature(conns []graph.Connection, env Environment) string {
	tokens := make([]string, 0, len(conns))
	for _, c := range conns {
		active := env.NodeActive(c.SourceNodeID)
		token := c.String() + "=" + strconv.FormatBool(active)
		if active {
			if v, ok := env.Output(c.SourceNodeID, c.SourceHandleID); ok {
				token += ":" + valueToken(v)
			}
		}
		tokens = append(tokens, token)
	}
	// conns arrive sorted from the topology index, so the joined form is stable.
	return hash([]byte(strings.Join(tokens, "|")))
}

// connectionSignature is the sorted tuple list over the activation-relevant
// incoming connections only, so wiring changes on irrelevant handles do not
// invalidate the record.
func connectionSignature(conns []graph.Connection) string {
	tuples := make([]string, 0, len(conns))
	for _, c := range conns {
		tuples = append(tuples, c.String())
	}
	return strings.Join(tuples, "|")
}

func valueToken(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func hash(b []byte) string {
	h := fnv.New64a()
	h.Write(b)
	return strconv.FormatUint(h.Sum64(), 16)
}
