package buildgraph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// FormatVersion is the wire-format version stamped into every encoded plan.
const FormatVersion = 1

// plan is the wire shape of an encoded graph. Nodes are sorted by
// fingerprint and outputs by target, so encoding the same graph always
// yields the same bytes.
type plan struct {
	Version int      `json:"version"`
	Nodes   []*Node  `json:"nodes"`
	Outputs []Output `json:"outputs"`
}

// Encode writes the graph as indented JSON. Two graphs with the same nodes
// and outputs encode to identical bytes regardless of insertion order.
func Encode(w io.Writer, g *Graph) error {
	p := plan{
		Version: FormatVersion,
		Nodes:   g.Nodes(),
		Outputs: g.Outputs(),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

// EncodeBytes is Encode into a byte slice.
func EncodeBytes(g *Graph) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads an encoded plan back into a graph. Node fingerprints are
// trusted as stored; they are re-derivable from the node contents but a
// consumer of the wire format has no reason to recompute them.
func Decode(r io.Reader) (*Graph, error) {
	var p plan
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding build plan: %w", err)
	}
	if p.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported build plan version %d", p.Version)
	}
	g := NewGraph()
	for _, n := range p.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("decoding build plan: node without id")
		}
		for _, in := range n.Inputs {
			if in == n.ID {
				return nil, fmt.Errorf("decoding build plan: node %s lists itself as input", n.ID)
			}
		}
		g.nodes[n.ID] = n
	}
	for _, n := range p.Nodes {
		for _, in := range n.Inputs {
			if g.nodes[in] == nil {
				return nil, fmt.Errorf("decoding build plan: node %s references missing input %s", n.ID, in)
			}
		}
	}
	if cycle := findCycle(g.nodes); cycle != "" {
		return nil, fmt.Errorf("decoding build plan: cyclic input chain through node %s", cycle)
	}
	g.outputs = p.Outputs
	for _, o := range g.outputs {
		if g.nodes[o.Node] == nil {
			return nil, fmt.Errorf("decoding build plan: output %s references missing node %s", o.Target, o.Node)
		}
	}
	return g, nil
}

// findCycle walks the input edges depth-first and returns a node on a cycle,
// or "" when the graph is acyclic. Decoded plans come from outside the
// process, so acyclicity has to be re-established rather than assumed.
func findCycle(nodes map[string]*Node) string {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int, len(nodes))
	var walk func(id string) string
	walk = func(id string) string {
		switch state[id] {
		case visiting:
			return id
		case done:
			return ""
		}
		state[id] = visiting
		for _, in := range nodes[id].Inputs {
			if hit := walk(in); hit != "" {
				return hit
			}
		}
		state[id] = done
		return ""
	}
	for id := range nodes {
		if hit := walk(id); hit != "" {
			return hit
		}
	}
	return ""
}
