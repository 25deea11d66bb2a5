package logic

import (
	"fmt"
	"strings"
)

// Signature identifies a predicate by name and arity, e.g. "copy/3".
type Signature struct {
	Name  string
	Arity int
}

// String renders the conventional name/arity form.
func (s Signature) String() string {
	return fmt.Sprintf("%s/%d", s.Name, s.Arity)
}

// Literal is a predicate applied to an ordered list of terms. Negated holds
// for negation-as-failure literals (`!p(...)` in the surface syntax).
type Literal struct {
	Predicate string
	Args      []Term
	Negated   bool
	Span      SourceSpan
}

// NewLiteral constructs a positive literal without position information,
// a convenience for tests and programmatic goals.
func NewLiteral(predicate string, args ...Term) Literal {
	return Literal{Predicate: predicate, Args: args}
}

// Signature returns the literal's predicate signature.
func (l Literal) Signature() Signature {
	return Signature{Name: l.Predicate, Arity: len(l.Args)}
}

// IsGround reports whether every argument is ground.
func (l Literal) IsGround() bool {
	for _, a := range l.Args {
		if !a.IsGround() {
			return false
		}
	}
	return true
}

// Variables appends the free variable names of all arguments to dst.
func (l Literal) Variables(dst []string) []string {
	for _, a := range l.Args {
		dst = a.Variables(dst)
	}
	return dst
}

// Rename returns the literal with all variables renamed by suffix n.
func (l Literal) Rename(n uint64) Literal {
	out := l
	out.Args = make([]Term, len(l.Args))
	for i, a := range l.Args {
		out.Args[i] = a.Rename(n)
	}
	return out
}

// Equal reports structural equality, ignoring spans.
func (l Literal) Equal(o Literal) bool {
	if l.Predicate != o.Predicate || l.Negated != o.Negated || len(l.Args) != len(o.Args) {
		return false
	}
	for i := range l.Args {
		if !l.Args[i].Equal(o.Args[i]) {
			return false
		}
	}
	return true
}

// String renders the literal in source syntax.
func (l Literal) String() string {
	var sb strings.Builder
	if l.Negated {
		sb.WriteByte('!')
	}
	sb.WriteString(l.Predicate)
	if len(l.Args) > 0 {
		sb.WriteByte('(')
		for i, a := range l.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(a.String())
		}
		sb.WriteByte(')')
	}
	return sb.String()
}

// Clause is a head literal and an ordered body. An empty body makes the
// clause a fact. The `::` merge combinator of the surface syntax is already
// lowered away by the time a Clause exists: merging is concatenation of the
// two sides' bodies in order, so operation sequencing falls out of body
// order alone.
type Clause struct {
	Head Literal
	Body []Literal
	Span SourceSpan
}

// IsFact reports whether the clause has an empty body.
func (c Clause) IsFact() bool {
	return len(c.Body) == 0
}

// Rename returns the clause with every variable consistently renamed using a
// fresh suffix, so two instantiations of the same clause can never capture
// each other's bindings.
func (c Clause) Rename() Clause {
	n := FreshSuffix()
	out := c
	out.Head = c.Head.Rename(n)
	out.Body = make([]Literal, len(c.Body))
	for i, l := range c.Body {
		out.Body[i] = l.Rename(n)
	}
	return out
}

// String renders the clause in source syntax.
func (c Clause) String() string {
	if c.IsFact() {
		return c.Head.String() + "."
	}
	parts := make([]string, len(c.Body))
	for i, l := range c.Body {
		parts[i] = l.String()
	}
	return fmt.Sprintf("%s :- %s.", c.Head.String(), strings.Join(parts, ", "))
}
