package buildgraph

import (
	"context"

	"github.com/vk/bricklog/internal/builtin"
	"github.com/vk/bricklog/internal/logic"
	"github.com/vk/bricklog/internal/solver"
)

// Compiler lowers derivations into a shared graph. One compiler instance
// accumulates any number of targets; stages referenced by cross-stage
// copies are resolved against the program and compiled on demand, once
// each.
type Compiler struct {
	prog  *logic.Program
	opts  solver.Options
	graph *Graph

	// target is the literal of the Compile call in progress; cross-stage
	// references are resolved against its shape.
	target logic.Literal

	// stages memoizes compiled stage outputs by rendered goal.
	stages map[string]string
	// inFlight is the stack of stage goals being compiled, used to detect
	// stages that copy from each other.
	inFlight []string
}

// NewCompiler returns a compiler over the given program. The solver options
// are used when a cross-stage reference forces an on-demand resolution run.
func NewCompiler(prog *logic.Program, opts solver.Options) *Compiler {
	return &Compiler{
		prog:   prog,
		opts:   opts,
		graph:  NewGraph(),
		stages: map[string]string{},
	}
}

// Graph returns the graph accumulated so far.
func (c *Compiler) Graph() *Graph {
	return c.graph
}

// Compile lowers one derivation of target into the graph and records the
// target's output node. The derivation must come from a resolution run over
// the same program.
func (c *Compiler) Compile(ctx context.Context, target logic.Literal, d *solver.Derivation) error {
	c.target = target
	tip, err := c.compileDerivation(ctx, d)
	if err != nil {
		return err
	}
	c.graph.addOutput(target.String(), tip)
	return nil
}

// compileDerivation walks the derivation's image operations in proof order
// and threads them into a node chain. The returned fingerprint is the
// stage's output node.
func (c *Compiler) compileDerivation(ctx context.Context, d *solver.Derivation) (string, error) {
	tip := ""
	for _, step := range d.Operations() {
		args, ok := stepArgs(step)
		if !ok {
			return "", &UngroundOperationError{Literal: step.Literal}
		}

		switch step.Builtin.Op {
		case builtin.OpFrom:
			tip = c.graph.add(builtin.OpFrom, args, nil)

		case builtin.OpCopyFrom:
			if tip == "" {
				return "", &MissingBaseError{Literal: step.Literal, Span: step.Literal.Span}
			}
			src, err := c.resolveStage(ctx, args[0], step.Literal.Span)
			if err != nil {
				return "", err
			}
			tip = c.graph.add(builtin.OpCopyFrom, args[1:], []string{tip, src})

		default:
			if tip == "" {
				return "", &MissingBaseError{Literal: step.Literal, Span: step.Literal.Span}
			}
			tip = c.graph.add(step.Builtin.Op, args, []string{tip})
		}
	}
	if tip == "" {
		return "", &MissingBaseError{Literal: d.Goal, Span: d.Goal.Span}
	}
	return tip, nil
}

// resolveStage maps a stage name from a cross-stage copy to the output node
// of that stage, resolving and compiling it on first use. The stage goal is
// derived from the shape of the target being compiled: a one-argument
// target names its siblings by argument, otherwise the stage name is taken
// as a nullary predicate.
func (c *Compiler) resolveStage(ctx context.Context, stage string, span logic.SourceSpan) (string, error) {
	goal, ok := c.stageGoal(stage)
	if !ok {
		return "", &UnknownStageReferenceError{Stage: stage, Span: span}
	}
	key := goal.String()
	if id, ok := c.stages[key]; ok {
		return id, nil
	}
	for _, f := range c.inFlight {
		if f == key {
			return "", &CyclicStageError{Chain: append(append([]string{}, c.inFlight...), key)}
		}
	}

	d, err := solver.First(ctx, c.prog, goal, c.opts)
	if err != nil {
		return "", err
	}

	c.inFlight = append(c.inFlight, key)
	tip, err := c.compileDerivation(ctx, d)
	c.inFlight = c.inFlight[:len(c.inFlight)-1]
	if err != nil {
		return "", err
	}
	c.stages[key] = tip
	return tip, nil
}

// stageGoal builds the goal literal for a named stage, preferring the
// compiled target's own predicate with the stage name substituted for its
// single argument.
func (c *Compiler) stageGoal(stage string) (logic.Literal, bool) {
	if len(c.target.Args) == 1 {
		g := logic.NewLiteral(c.target.Predicate, logic.Constant(stage))
		if c.prog.Defines(g.Signature()) {
			return g, true
		}
	}
	g := logic.NewLiteral(stage)
	if c.prog.Defines(g.Signature()) {
		return g, true
	}
	return logic.Literal{}, false
}

// stepArgs resolves every argument of an operation step to constant text.
func stepArgs(step *solver.Step) ([]string, bool) {
	out := make([]string, len(step.Literal.Args))
	for i, a := range step.Literal.Args {
		v, ok := a.Resolve()
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}
