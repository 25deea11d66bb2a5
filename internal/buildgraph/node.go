// Package buildgraph lowers successful derivations into a content-addressed
// directed acyclic graph of image operations. Nodes are keyed by a
// fingerprint over their kind, arguments and predecessor fingerprints, so
// identical work reached from different goals collapses into one node and
// builders downstream can cache by node identity.
package buildgraph

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/vk/bricklog/internal/builtin"
)

// Node is one image operation. A node never changes after insertion; its
// identity is the fingerprint of everything that determines its output.
type Node struct {
	// ID is the node's fingerprint, a hex-encoded 64-bit hash.
	ID string `json:"id"`
	// Kind names the operation, e.g. "from" or "copy-from".
	Kind builtin.OpKind `json:"kind"`
	// Args are the operation's resolved string arguments. For copy-from the
	// stage-name argument is dropped; the stage is carried as an input edge.
	Args []string `json:"args"`
	// Inputs are the fingerprints of predecessor nodes: the stage tip the
	// operation extends, plus the source stage output for copy-from.
	Inputs []string `json:"inputs,omitempty"`
}

// Output names a compiled target and the node producing its final image.
type Output struct {
	Target string `json:"target"`
	Node   string `json:"node"`
}

// Graph is a deduplicated set of operation nodes and the outputs compiled
// into it. One graph may hold many targets; shared prefixes share nodes.
type Graph struct {
	nodes   map[string]*Node
	outputs []Output
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{nodes: map[string]*Node{}}
}

// add inserts a node with the given shape, returning the fingerprint. An
// existing node with the same fingerprint is reused untouched.
func (g *Graph) add(kind builtin.OpKind, args []string, inputs []string) string {
	id := fingerprint(kind, args, inputs)
	if _, ok := g.nodes[id]; ok {
		return id
	}
	g.nodes[id] = &Node{
		ID:     id,
		Kind:   kind,
		Args:   append([]string{}, args...),
		Inputs: append([]string{}, inputs...),
	}
	return id
}

// addOutput records a compiled target. Recompiling the same target with the
// same node is a no-op.
func (g *Graph) addOutput(target, node string) {
	for _, o := range g.outputs {
		if o.Target == target && o.Node == node {
			return
		}
	}
	g.outputs = append(g.outputs, Output{Target: target, Node: node})
}

// Node returns the node with the given fingerprint, or nil.
func (g *Graph) Node(id string) *Node {
	return g.nodes[id]
}

// Len returns the number of distinct nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Nodes returns every node sorted by fingerprint.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Outputs returns the compiled targets sorted by target name.
func (g *Graph) Outputs() []Output {
	out := append([]Output{}, g.outputs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Target < out[j].Target })
	return out
}

// fingerprint hashes a node's kind, arguments and input fingerprints.
// Length prefixes keep distinct argument lists from colliding on
// concatenation.
func fingerprint(kind builtin.OpKind, args []string, inputs []string) string {
	h := xxhash.New()
	writePart(h, string(kind))
	for _, a := range args {
		writePart(h, a)
	}
	for _, in := range inputs {
		writePart(h, in)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

func writePart(h *xxhash.Digest, s string) {
	var buf [8]byte
	n := len(s)
	for i := 0; i < 8; i++ {
		buf[i] = byte(n >> (8 * i))
	}
	h.Write(buf[:])
	h.WriteString(s)
}
