package solver

import (
	"fmt"
	"strings"

	"github.com/vk/bricklog/internal/logic"
)

// StratificationError is a static error: some predicate depends negatively
// on itself, directly or transitively, so negation-as-failure would be
// unsound. It is raised before any search begins.
type StratificationError struct {
	Predicate logic.Signature
	Cycle     []logic.Signature
	Span      logic.SourceSpan
}

// Error implements the error interface.
func (e *StratificationError) Error() string {
	names := make([]string, len(e.Cycle))
	for i, s := range e.Cycle {
		names[i] = s.String()
	}
	return fmt.Sprintf("program is not stratified: %s depends negatively on itself through %s",
		e.Predicate, strings.Join(names, " -> "))
}

// UnknownPredicateError reports a goal literal that matches neither a
// builtin nor any user clause.
type UnknownPredicateError struct {
	Literal logic.Literal
	Span    logic.SourceSpan
}

// Error implements the error interface.
func (e *UnknownPredicateError) Error() string {
	return fmt.Sprintf("unknown predicate %s at %s", e.Literal.Signature(), e.Span)
}

// UnboundArgumentError reports a builtin whose required-ground argument was
// still free after its clause was fully resolved. The branch it occurred on
// is abandoned; sibling clauses may still succeed.
type UnboundArgumentError struct {
	Literal   logic.Literal
	Variables []string
	Span      logic.SourceSpan
}

// Error implements the error interface.
func (e *UnboundArgumentError) Error() string {
	return fmt.Sprintf("builtin %s at %s requires ground arguments; unbound: %s",
		e.Literal.String(), e.Span, strings.Join(e.Variables, ", "))
}

// RecursionDivergenceError reports a branch abandoned because a goal
// recurred with no binding progress, or because the proof exceeded the
// depth limit.
type RecursionDivergenceError struct {
	Literal logic.Literal
	Depth   int
	Span    logic.SourceSpan
}

// Error implements the error interface.
func (e *RecursionDivergenceError) Error() string {
	return fmt.Sprintf("non-terminating recursion detected at depth %d on %s (%s)",
		e.Depth, e.Literal.String(), e.Span)
}

// branchFailure records why one branch died, and how deep it got. Deeper
// failures are more informative, so the aggregate error keeps the deepest
// failure per exhausted line of search.
type branchFailure struct {
	depth int
	err   error
}

// FailureError is the user-visible outcome when every branch for the
// top-level goal failed. It aggregates the deepest failure from each
// exhausted branch; unification failures that merely drove backtracking are
// only reported when nothing more specific exists.
type FailureError struct {
	Goal     logic.Literal
	Failures []error
}

// Error implements the error interface.
func (e *FailureError) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("no derivation found for goal %s", e.Goal.String())
	}
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("no derivation found for goal %s: %s",
		e.Goal.String(), strings.Join(parts, "; "))
}

// Unwrap exposes the aggregated failures to errors.Is/As.
func (e *FailureError) Unwrap() []error {
	return e.Failures
}

// unificationFailure is branch-local and never surfaces on its own; it
// exists so the deepest-failure bookkeeping has something to record when a
// goal simply matched no clause head.
type unificationFailure struct {
	Literal logic.Literal
}

func (e *unificationFailure) Error() string {
	return fmt.Sprintf("no clause matches %s", e.Literal.String())
}
