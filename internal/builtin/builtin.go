// Package builtin defines the closed set of predicates the resolution engine
// evaluates natively instead of resolving against user clauses. Each builtin
// declares its arity and a per-argument groundness mask, checked at
// registration time, so dispatch is a table lookup rather than open-ended
// shape matching.
package builtin

import (
	"fmt"

	"github.com/vk/bricklog/internal/logic"
)

// SelectResult classifies how a literal relates to the builtin table.
type SelectResult int

const (
	// NoMatch means no builtin carries this name.
	NoMatch SelectResult = iota
	// GroundnessMismatch means a builtin exists but a required-ground
	// argument is still unbound; the literal may become selectable later.
	GroundnessMismatch
	// Match means the literal can be evaluated now.
	Match
)

// Builtin is one native evaluation rule.
type Builtin struct {
	// Name and Arity form the dispatch key.
	Name  string
	Arity int

	// MayBeUnbound marks arguments that are allowed to be free variables at
	// selection time. Image-producing builtins require every argument ground.
	MayBeUnbound []bool

	// Op is the operation this builtin contributes to the build graph, or
	// OpNone for purely logical builtins such as string_concat.
	Op OpKind

	// Apply returns a fully ground literal to unify against the input, or
	// false when the builtin cannot succeed on these arguments. Apply is only
	// called once the groundness mask is satisfied.
	Apply func(lit logic.Literal) (logic.Literal, bool)
}

var table []Builtin

// register panics on malformed entries; the table is package data, so a bad
// entry is a programmer error.
func register(b Builtin) {
	if b.Arity != len(b.MayBeUnbound) {
		panic(fmt.Sprintf("builtin %s/%d: groundness mask has %d entries",
			b.Name, b.Arity, len(b.MayBeUnbound)))
	}
	if b.Apply == nil {
		panic(fmt.Sprintf("builtin %s/%d: missing Apply", b.Name, b.Arity))
	}
	table = append(table, b)
}

// Select finds the builtin able to evaluate the literal right now. When
// every candidate with this name exists but none passes its groundness mask,
// the result is GroundnessMismatch so the caller can defer the literal.
func Select(lit logic.Literal) (*Builtin, SelectResult) {
	sawName := false
	for i := range table {
		b := &table[i]
		if b.Name != lit.Predicate || b.Arity != len(lit.Args) {
			continue
		}
		sawName = true
		if maskSatisfied(b, lit) {
			return b, Match
		}
	}
	if sawName {
		return nil, GroundnessMismatch
	}
	return nil, NoMatch
}

// IsBuiltinName reports whether any builtin uses the given predicate name,
// at any arity.
func IsBuiltinName(name string) bool {
	for i := range table {
		if table[i].Name == name {
			return true
		}
	}
	return false
}

func maskSatisfied(b *Builtin, lit logic.Literal) bool {
	for i, arg := range lit.Args {
		if !b.MayBeUnbound[i] && !arg.IsGround() {
			return false
		}
	}
	return true
}

// resolvedArgs resolves every argument of a ground literal to its constant
// text. It fails if any argument is not ground, which callers treat as a
// non-match.
func resolvedArgs(lit logic.Literal) ([]string, bool) {
	out := make([]string, len(lit.Args))
	for i, a := range lit.Args {
		v, ok := a.Resolve()
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// groundLiteral rebuilds the literal with all arguments as constants.
func groundLiteral(lit logic.Literal, values []string) logic.Literal {
	out := lit
	out.Args = make([]logic.Term, len(values))
	for i, v := range values {
		out.Args[i] = logic.Constant(v)
	}
	return out
}
