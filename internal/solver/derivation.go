package solver

import (
	"fmt"
	"io"
	"strings"

	"github.com/vk/bricklog/internal/builtin"
	"github.com/vk/bricklog/internal/logic"
)

// Step is one node of a derivation tree: the literal that was proven, how it
// was proven, and the proofs of the clause body if a user clause was
// applied. Literals in a finished derivation are fully resolved under the
// branch's final substitution.
type Step struct {
	// Literal is the proven literal, ground wherever resolution bound it.
	Literal logic.Literal
	// Builtin is non-nil when the literal was evaluated natively.
	Builtin *builtin.Builtin
	// Clause is non-nil when a user clause was applied.
	Clause *logic.Clause
	// Children are the proofs of the applied clause's body, in body order.
	Children []*Step
}

// Derivation is one successful proof of a goal. It is produced by a single
// resolution run and consumed read-only by the build-graph compiler.
type Derivation struct {
	// Goal is the query literal under the final substitution.
	Goal logic.Literal
	// Root proves the goal.
	Root *Step
	// Bindings is the final substitution for the branch.
	Bindings logic.Substitution
}

// Operations returns the image-producing builtin steps of the derivation in
// the order they were appended during resolution, which is the order the
// compiled stage must preserve.
func (d *Derivation) Operations() []*Step {
	var ops []*Step
	var walk func(s *Step)
	walk = func(s *Step) {
		if s.Builtin != nil && s.Builtin.Op != builtin.OpNone {
			ops = append(ops, s)
		}
		for _, c := range s.Children {
			walk(c)
		}
	}
	walk(d.Root)
	return ops
}

// Render writes a human-readable proof tree, used by the CLI's proof
// printing mode.
func (d *Derivation) Render(w io.Writer) error {
	var walk func(s *Step, depth int) error
	walk = func(s *Step, depth int) error {
		indent := strings.Repeat("  ", depth)
		label := s.Literal.String()
		switch {
		case s.Builtin != nil:
			label += "  [builtin]"
		case s.Literal.Negated:
			label += "  [negation]"
		case s.Clause != nil && s.Clause.IsFact():
			label += "  [fact]"
		}
		if _, err := fmt.Fprintf(w, "%s%s\n", indent, label); err != nil {
			return err
		}
		for _, c := range s.Children {
			if err := walk(c, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(d.Root, 0)
}

// event is one resolution decision in a branch's append-only log. The log
// replaces a mutable proof tree: forking a branch copies the slice of
// immutable events, and a finished branch replays its log into Steps.
type event struct {
	lit     logic.Literal
	parent  int // index of the parent event, -1 for the root
	clause  *logic.Clause
	builtin *builtin.Builtin
}

// buildDerivation replays a successful branch's log into a derivation tree,
// resolving every literal under the final substitution.
func buildDerivation(goal logic.Literal, log []event, subst logic.Substitution) *Derivation {
	steps := make([]*Step, len(log))
	var root *Step
	for i, ev := range log {
		steps[i] = &Step{
			Literal: resolveLiteral(subst.ApplyLiteral(ev.lit)),
			Builtin: ev.builtin,
			Clause:  ev.clause,
		}
		if ev.parent < 0 {
			root = steps[i]
		} else {
			steps[ev.parent].Children = append(steps[ev.parent].Children, steps[i])
		}
	}
	return &Derivation{
		Goal:     resolveLiteral(subst.ApplyLiteral(goal)),
		Root:     root,
		Bindings: subst,
	}
}

// resolveLiteral collapses ground format strings into constants so the
// compiler sees only constants and (for failed branches) variables.
func resolveLiteral(l logic.Literal) logic.Literal {
	out := l
	out.Args = make([]logic.Term, len(l.Args))
	for i, a := range l.Args {
		if v, ok := a.Resolve(); ok {
			out.Args[i] = logic.Constant(v)
		} else {
			out.Args[i] = a
		}
	}
	return out
}
