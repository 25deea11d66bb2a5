package logic

import (
	"sort"
	"strings"
)

// Substitution maps variable names to terms. A substitution is owned by
// exactly one resolution branch and is never mutated in place: Extend
// returns a copy, so forking a branch is a structural copy with no
// undo-logging. Bindings accumulate monotonically along a branch and are
// only discarded by abandoning the whole branch.
type Substitution struct {
	bindings map[string]Term
}

// EmptySubstitution returns a substitution with no bindings.
func EmptySubstitution() Substitution {
	return Substitution{}
}

// Lookup returns the binding for a variable name, if any.
func (s Substitution) Lookup(name string) (Term, bool) {
	t, ok := s.bindings[name]
	return t, ok
}

// Len returns the number of bindings.
func (s Substitution) Len() int {
	return len(s.bindings)
}

// Extend returns a new substitution with the given binding added. The
// receiver is unchanged.
func (s Substitution) Extend(name string, t Term) Substitution {
	out := make(map[string]Term, len(s.bindings)+1)
	for k, v := range s.bindings {
		out[k] = v
	}
	out[name] = t
	return Substitution{bindings: out}
}

// Apply rewrites a term under the substitution, following binding chains
// until a fixpoint. Unbound variables stay as-is.
func (s Substitution) Apply(t Term) Term {
	switch t.Kind {
	case KindConstant:
		return t
	case KindVariable:
		if bound, ok := s.bindings[t.Name]; ok {
			// A variable can be bound to another variable; chase the chain.
			if bound.Kind == KindVariable && bound.Name != t.Name {
				return s.Apply(bound)
			}
			if bound.Kind == KindFormatString {
				return s.Apply(bound)
			}
			return bound
		}
		return t
	case KindFormatString:
		out := make([]Fragment, len(t.Fragments))
		for i, f := range t.Fragments {
			if f.Term == nil {
				out[i] = f
				continue
			}
			at := s.Apply(*f.Term)
			out[i] = Fragment{Term: &at}
		}
		return FormatString(out...)
	}
	return t
}

// ApplyLiteral rewrites every argument of a literal.
func (s Substitution) ApplyLiteral(l Literal) Literal {
	out := l
	out.Args = make([]Term, len(l.Args))
	for i, a := range l.Args {
		out.Args[i] = s.Apply(a)
	}
	return out
}

// String renders the bindings sorted by variable name, for diagnostics.
func (s Substitution) String() string {
	names := make([]string, 0, len(s.bindings))
	for n := range s.bindings {
		names = append(names, n)
	}
	sort.Strings(names)
	var sb strings.Builder
	sb.WriteByte('{')
	for i, n := range names {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(n)
		sb.WriteString(" -> ")
		sb.WriteString(s.bindings[n].String())
	}
	sb.WriteByte('}')
	return sb.String()
}
