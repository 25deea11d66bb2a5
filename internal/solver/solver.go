// Package solver implements top-down resolution of goals against a
// bricklog program. Search is depth-first over an explicit work-list of
// branches: each branch owns an immutable substitution and an append-only
// resolution log, so forking a branch is a structural copy and no shared
// state needs undo-logging. Deep proofs therefore never grow the native
// call stack, and every loop iteration is a cancellation point.
package solver

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/vk/bricklog/internal/builtin"
	"github.com/vk/bricklog/internal/logic"
)

// DefaultMaxDepth bounds proof depth. Recursion that makes binding progress
// may legitimately go deep; this cap is the hard stop for runaways that the
// unprogressing-goal check cannot see.
const DefaultMaxDepth = 175

// Options tunes a resolution run.
type Options struct {
	// MaxDepth bounds proof depth; zero means DefaultMaxDepth.
	MaxDepth int
	// Workers bounds the worker pool used by SolveAll; zero means the number
	// of available CPUs.
	Workers int
}

func (o Options) withDefaults() Options {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	return o
}

// goalItem is one pending literal and the log index of the event that
// introduced it.
type goalItem struct {
	lit    logic.Literal
	parent int
}

// branch is one line of search. Branches are forked by value: goals, log
// and trail are copied, the substitution is immutable and shared.
type branch struct {
	goals []goalItem
	subst logic.Substitution
	log   []event
	depth int
	// trail maps a rendered selected literal to the binding count at its
	// selection, for the unprogressing-recursion check.
	trail map[string]int
}

func (b *branch) fork() *branch {
	nb := &branch{
		goals: append([]goalItem{}, b.goals...),
		subst: b.subst,
		log:   append([]event{}, b.log...),
		depth: b.depth,
		trail: make(map[string]int, len(b.trail)),
	}
	for k, v := range b.trail {
		nb.trail[k] = v
	}
	return nb
}

// Stream lazily enumerates derivations for one goal. A Stream is not safe
// for concurrent use and is not restartable: re-running the search means
// calling Solve again.
type Stream struct {
	prog     *logic.Program
	goal     logic.Literal
	opts     Options
	stack    []*branch
	failures []branchFailure
	yielded  int
	// capped records that some branch died on the hard depth limit, meaning
	// exhaustion of this stream does not prove the goal unprovable.
	capped bool
}

// Solve starts a resolution run for goal against program. Static analysis
// (stratification) runs first; a violation is returned before any search
// happens. The returned stream enumerates every successful derivation
// reachable from the goal, in clause-declaration order.
func Solve(program *logic.Program, goal logic.Literal, opts Options) (*Stream, error) {
	if err := checkStratified(program); err != nil {
		return nil, err
	}
	return newStream(program, goal, opts.withDefaults()), nil
}

func newStream(program *logic.Program, goal logic.Literal, opts Options) *Stream {
	root := &branch{
		goals: []goalItem{{lit: goal, parent: -1}},
		subst: logic.EmptySubstitution(),
		trail: map[string]int{},
	}
	return &Stream{
		prog:  program,
		goal:  goal,
		opts:  opts,
		stack: []*branch{root},
	}
}

// Next returns the next derivation, or nil when the search space is
// exhausted. The only error it returns is context cancellation.
func (s *Stream) Next(ctx context.Context) (*Derivation, error) {
	for len(s.stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b := s.stack[len(s.stack)-1]
		s.stack = s.stack[:len(s.stack)-1]

		children, result, fail, err := s.step(ctx, b)
		if err != nil {
			return nil, err
		}
		if fail != nil {
			s.recordFailure(*fail)
			continue
		}
		if result != nil {
			s.yielded++
			return result, nil
		}
		// Push in reverse so the first alternative is explored first.
		for i := len(children) - 1; i >= 0; i-- {
			s.stack = append(s.stack, children[i])
		}
	}
	return nil, nil
}

// Failure aggregates why the search produced nothing. It returns nil while
// at least one derivation was yielded.
func (s *Stream) Failure() error {
	if s.yielded > 0 {
		return nil
	}
	return &FailureError{Goal: s.goal, Failures: s.topFailures()}
}

// topFailures keeps the deepest few branch failures, deduplicated by
// message, so the user sees the most advanced dead-ends rather than dozens
// of shallow unification misses.
func (s *Stream) topFailures() []error {
	sort.SliceStable(s.failures, func(i, j int) bool {
		return s.failures[i].depth > s.failures[j].depth
	})
	seen := map[string]bool{}
	var out []error
	for _, f := range s.failures {
		msg := f.err.Error()
		if seen[msg] {
			continue
		}
		seen[msg] = true
		out = append(out, f.err)
		if len(out) == 3 {
			break
		}
	}
	return out
}

func (s *Stream) recordFailure(f branchFailure) {
	s.failures = append(s.failures, f)
	// Bound memory on pathological programs.
	if len(s.failures) > 64 {
		sort.SliceStable(s.failures, func(i, j int) bool {
			return s.failures[i].depth > s.failures[j].depth
		})
		s.failures = s.failures[:32]
	}
}

// step advances one branch by a single resolution move. It returns either
// successor branches, a finished derivation, or the reason the branch died.
func (s *Stream) step(ctx context.Context, b *branch) (children []*branch, result *Derivation, fail *branchFailure, err error) {
	if len(b.goals) == 0 {
		return nil, buildDerivation(s.goal, b.log, b.subst), nil, nil
	}
	if b.depth >= s.opts.MaxDepth {
		s.capped = true
		first := b.subst.ApplyLiteral(b.goals[0].lit)
		return nil, nil, &branchFailure{depth: b.depth, err: &RecursionDivergenceError{
			Literal: first, Depth: b.depth, Span: first.Span,
		}}, nil
	}

	idx, lit, kind, selErr := s.selectGoal(b)
	if selErr != nil {
		return nil, nil, &branchFailure{depth: b.depth, err: selErr}, nil
	}

	switch kind {
	case selNegation:
		return s.stepNegation(ctx, b, idx, lit)
	case selBuiltin:
		return s.stepBuiltin(b, idx, lit)
	default:
		return s.stepUser(b, idx, lit)
	}
}

type selection int

const (
	selUser selection = iota
	selBuiltin
	selNegation
)

// selectGoal picks the leftmost literal with compatible groundness.
// Builtins whose required-ground arguments are still free are deferred in
// the hope that a literal to their right binds them; if nothing is
// selectable the branch dies with an UnboundArgumentError for the first
// deferred builtin.
func (s *Stream) selectGoal(b *branch) (int, logic.Literal, selection, error) {
	deferred := -1
	var deferredLit logic.Literal
	for i, g := range b.goals {
		lit := b.subst.ApplyLiteral(g.lit)
		lit.Span = g.lit.Span

		if lit.Negated {
			if lit.IsGround() {
				return i, lit, selNegation, nil
			}
			if deferred < 0 {
				deferred, deferredLit = i, lit
			}
			continue
		}

		_, res := builtin.Select(lit)
		switch res {
		case builtin.Match:
			return i, lit, selBuiltin, nil
		case builtin.GroundnessMismatch:
			if deferred < 0 {
				deferred, deferredLit = i, lit
			}
			continue
		}

		if s.prog.Defines(lit.Signature()) {
			return i, lit, selUser, nil
		}
		return 0, logic.Literal{}, selUser, &UnknownPredicateError{Literal: lit, Span: lit.Span}
	}

	// Everything still pending needs bindings that will never arrive.
	vars := logic.SortedUnique(deferredLit.Variables(nil))
	return 0, logic.Literal{}, selUser, &UnboundArgumentError{
		Literal:   deferredLit,
		Variables: vars,
		Span:      deferredLit.Span,
	}
}

func (s *Stream) stepBuiltin(b *branch, idx int, lit logic.Literal) ([]*branch, *Derivation, *branchFailure, error) {
	bi, res := builtin.Select(lit)
	if res != builtin.Match {
		return nil, nil, &branchFailure{depth: b.depth, err: &unificationFailure{Literal: lit}}, nil
	}
	candidate, ok := bi.Apply(lit)
	if !ok {
		return nil, nil, &branchFailure{depth: b.depth, err: &unificationFailure{Literal: lit}}, nil
	}
	mgu, ok := logic.Unify(candidate, lit, b.subst)
	if !ok {
		return nil, nil, &branchFailure{depth: b.depth, err: &unificationFailure{Literal: lit}}, nil
	}

	child := b.fork()
	child.subst = mgu
	child.depth = b.depth + 1
	ev := event{lit: candidate, parent: child.goals[idx].parent, builtin: bi}
	child.log = append(child.log, ev)
	child.goals = append(child.goals[:idx], child.goals[idx+1:]...)
	return []*branch{child}, nil, nil, nil
}

func (s *Stream) stepUser(b *branch, idx int, lit logic.Literal) ([]*branch, *Derivation, *branchFailure, error) {
	// Unprogressing recurrence: the same rendered goal at the same binding
	// count means no progress was made since its last expansion.
	key := lit.String()
	if prev, ok := b.trail[key]; ok && prev == b.subst.Len() {
		return nil, nil, &branchFailure{depth: b.depth, err: &RecursionDivergenceError{
			Literal: lit, Depth: b.depth, Span: lit.Span,
		}}, nil
	}

	var children []*branch
	for _, clause := range s.prog.ClausesFor(lit.Signature()) {
		rc := clause.Rename()
		mgu, ok := logic.Unify(rc.Head, lit, b.subst)
		if !ok {
			continue
		}
		child := b.fork()
		child.subst = mgu
		child.depth = b.depth + 1
		child.trail[key] = b.subst.Len()

		evIdx := len(child.log)
		child.log = append(child.log, event{
			lit:    lit,
			parent: child.goals[idx].parent,
			clause: &clause,
		})

		// Replace the selected goal with the clause body in place, keeping
		// sequential operation order intact.
		body := make([]goalItem, len(rc.Body))
		for i, bl := range rc.Body {
			body[i] = goalItem{lit: bl, parent: evIdx}
		}
		rest := append([]goalItem{}, child.goals[idx+1:]...)
		child.goals = append(child.goals[:idx], append(body, rest...)...)
		children = append(children, child)
	}

	if len(children) == 0 {
		return nil, nil, &branchFailure{depth: b.depth, err: &unificationFailure{Literal: lit}}, nil
	}
	return children, nil, nil, nil
}

// stepNegation proves a ground negated literal by exhaustive failure of its
// positive form. Stratification guarantees the sub-goal sits in a strictly
// lower stratum, so the nested search always terminates before this one.
func (s *Stream) stepNegation(ctx context.Context, b *branch, idx int, lit logic.Literal) ([]*branch, *Derivation, *branchFailure, error) {
	positive := lit
	positive.Negated = false

	subOpts := s.opts
	subOpts.MaxDepth = s.opts.MaxDepth - b.depth
	sub := newStream(s.prog, positive, subOpts)
	d, err := sub.Next(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	if d != nil {
		return nil, nil, &branchFailure{depth: b.depth, err: fmt.Errorf(
			"negated goal %s is provable", positive.String())}, nil
	}
	// A capped sub-search exhausted nothing: a proof of the positive form may
	// exist beyond the depth budget, so succeeding here would be unsound.
	if sub.capped {
		return nil, nil, &branchFailure{depth: b.depth, err: &RecursionDivergenceError{
			Literal: lit, Depth: b.depth, Span: lit.Span,
		}}, nil
	}

	child := b.fork()
	child.depth = b.depth + 1
	child.log = append(child.log, event{lit: lit, parent: child.goals[idx].parent})
	child.goals = append(child.goals[:idx], child.goals[idx+1:]...)
	return []*branch{child}, nil, nil, nil
}

// First returns the first successful derivation in program-declaration
// order, the default compilation target when the caller did not ask for all
// variants.
func First(ctx context.Context, program *logic.Program, goal logic.Literal, opts Options) (*Derivation, error) {
	stream, err := Solve(program, goal, opts)
	if err != nil {
		return nil, err
	}
	d, err := stream.Next(ctx)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, stream.Failure()
	}
	return d, nil
}

// SolveAll enumerates every derivation, splitting the top-level clause
// alternatives across a worker pool. Each worker owns its branches
// outright, so no locking is needed beyond collecting results; result order
// follows clause-declaration order regardless of which worker finished
// first.
func SolveAll(ctx context.Context, program *logic.Program, goal logic.Literal, opts Options) ([]*Derivation, error) {
	stream, err := Solve(program, goal, opts)
	if err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	// Take the root's first expansion to obtain independent alternatives.
	root := stream.stack[len(stream.stack)-1]
	stream.stack = stream.stack[:len(stream.stack)-1]
	alts, result, fail, err := stream.step(ctx, root)
	if err != nil {
		return nil, err
	}
	if result != nil {
		return []*Derivation{result}, nil
	}
	if fail != nil {
		return nil, &FailureError{Goal: goal, Failures: []error{fail.err}}
	}

	results := make([][]*Derivation, len(alts))
	subs := make([]*Stream, len(alts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, alt := range alts {
		sub := &Stream{prog: program, goal: goal, opts: opts, stack: []*branch{alt}}
		subs[i] = sub
		i := i
		g.Go(func() error {
			for {
				d, err := sub.Next(gctx)
				if err != nil {
					return err
				}
				if d == nil {
					return nil
				}
				results[i] = append(results[i], d)
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []*Derivation
	for _, rs := range results {
		all = append(all, rs...)
	}
	if len(all) == 0 {
		var failures []error
		for _, sub := range subs {
			failures = append(failures, sub.topFailures()...)
		}
		return nil, &FailureError{Goal: goal, Failures: dedupErrors(failures)}
	}
	return all, nil
}

func dedupErrors(errs []error) []error {
	seen := map[string]bool{}
	var out []error
	for _, e := range errs {
		if e == nil || seen[e.Error()] {
			continue
		}
		seen[e.Error()] = true
		out = append(out, e)
		if len(out) == 3 {
			break
		}
	}
	return out
}
