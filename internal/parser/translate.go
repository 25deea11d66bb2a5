package parser

import "github.com/vk/bricklog/internal/logic"

// translate lowers a surface clause into flat IR clauses. Disjunction splits
// into multiple clauses; conjunction over disjunctions takes the cartesian
// product of alternatives, preserving left-to-right order so clause order
// remains the derivation tie-break. The `::` merge combinator lowers to
// plain concatenation: the right side's literals follow the left side's, and
// operation layering falls out of body order during compilation.
func translate(sc SurfaceClause) ([]logic.Clause, error) {
	if sc.Body == nil {
		return []logic.Clause{{Head: sc.Head, Span: sc.Span}}, nil
	}
	alts := flatten(sc.Body)
	clauses := make([]logic.Clause, 0, len(alts))
	for _, alt := range alts {
		clauses = append(clauses, logic.Clause{
			Head: sc.Head,
			Body: alt,
			Span: sc.Span,
		})
	}
	return clauses, nil
}

func flatten(e *Expression) [][]logic.Literal {
	switch {
	case e.Lit != nil:
		return [][]logic.Literal{{*e.Lit}}
	case e.Or != nil:
		var out [][]logic.Literal
		for _, alt := range e.Or {
			out = append(out, flatten(alt)...)
		}
		return out
	case e.And != nil:
		out := [][]logic.Literal{{}}
		for _, conj := range e.And {
			out = product(out, flatten(conj))
		}
		return out
	case e.MergeLeft != nil:
		return product(flatten(e.MergeLeft), flatten(e.MergeRight))
	}
	return nil
}

// product concatenates every left alternative with every right alternative.
func product(left, right [][]logic.Literal) [][]logic.Literal {
	out := make([][]logic.Literal, 0, len(left)*len(right))
	for _, l := range left {
		for _, r := range right {
			combined := make([]logic.Literal, 0, len(l)+len(r))
			combined = append(combined, l...)
			combined = append(combined, r...)
			out = append(out, combined)
		}
	}
	return out
}
