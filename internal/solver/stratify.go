package solver

import (
	"github.com/vk/bricklog/internal/logic"
)

// depEdge is one head -> body dependency in the predicate graph.
type depEdge struct {
	from, to logic.Signature
	negative bool
	span     logic.SourceSpan
}

// checkStratified verifies that no predicate depends negatively on itself,
// directly or transitively. The check runs before any search; a violation
// is fatal for the whole compilation.
//
// For every negative edge a -> b it suffices to show b cannot reach a in
// the dependency graph; if it can, the program has a cycle through a
// negation and is rejected.
func checkStratified(p *logic.Program) error {
	adj := make(map[logic.Signature][]logic.Signature)
	var negatives []depEdge

	for _, c := range p.Clauses() {
		from := c.Head.Signature()
		for _, l := range c.Body {
			e := depEdge{from: from, to: l.Signature(), negative: l.Negated, span: l.Span}
			adj[from] = append(adj[from], e.to)
			if l.Negated {
				negatives = append(negatives, e)
			}
		}
	}

	for _, neg := range negatives {
		if path := reach(adj, neg.to, neg.from); path != nil {
			cycle := append([]logic.Signature{neg.from}, path...)
			return &StratificationError{
				Predicate: neg.from,
				Cycle:     cycle,
				Span:      neg.span,
			}
		}
	}
	return nil
}

// reach returns a path from src to dst over adj, or nil. Iterative DFS with
// an explicit stack; predicate graphs are small but user-supplied.
func reach(adj map[logic.Signature][]logic.Signature, src, dst logic.Signature) []logic.Signature {
	type frame struct {
		sig  logic.Signature
		path []logic.Signature
	}
	seen := map[logic.Signature]bool{}
	stack := []frame{{sig: src, path: []logic.Signature{src}}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.sig == dst {
			return f.path
		}
		if seen[f.sig] {
			continue
		}
		seen[f.sig] = true
		for _, next := range adj[f.sig] {
			if !seen[next] {
				p := append(append([]logic.Signature{}, f.path...), next)
				stack = append(stack, frame{sig: next, path: p})
			}
		}
	}
	return nil
}
