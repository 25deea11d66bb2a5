package app

import (
	"context"
	"fmt"
	"os"

	"github.com/vk/bricklog/internal/buildgraph"
	"github.com/vk/bricklog/internal/ctxlog"
	"github.com/vk/bricklog/internal/frontend"
	"github.com/vk/bricklog/internal/logic"
	"github.com/vk/bricklog/internal/parser"
	"github.com/vk/bricklog/internal/solver"
)

// Run executes the configured mode: a one-shot query compilation, or the
// frontend server until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	if a.config.Listen {
		return a.runListen(ctx)
	}
	return a.runQuery(ctx)
}

func (a *App) runListen(ctx context.Context) error {
	server, err := frontend.NewServer(a.settings, a.program)
	if err != nil {
		return err
	}
	return server.ListenAndServe(ctx)
}

// runQuery resolves the query goal, compiles every requested derivation
// into one graph, and writes the encoded plan.
func (a *App) runQuery(ctx context.Context) error {
	goal, err := parser.ParseGoal(a.config.Query)
	if err != nil {
		return err
	}
	goal = a.bindArgs(goal)
	opts := a.solverOptions()

	var derivations []*solver.Derivation
	if a.config.AllVariants {
		derivations, err = solver.SolveAll(ctx, a.program, goal, opts)
	} else {
		var d *solver.Derivation
		d, err = solver.First(ctx, a.program, goal, opts)
		if d != nil {
			derivations = []*solver.Derivation{d}
		}
	}
	if err != nil {
		return err
	}
	a.logger.Debug("goal resolved", "goal", goal.String(), "derivations", len(derivations))

	if a.config.PrintProof {
		for _, d := range derivations {
			if err := d.Render(os.Stderr); err != nil {
				return err
			}
		}
	}

	compiler := buildgraph.NewCompiler(a.program, opts)
	for _, d := range derivations {
		if err := compiler.Compile(ctx, d.Goal, d); err != nil {
			return err
		}
	}
	graph := compiler.Graph()
	a.logger.Info("plan compiled",
		"goal", goal.String(), "nodes", graph.Len(), "outputs", len(graph.Outputs()))

	out := a.outW
	if a.config.OutputPath != "" {
		f, err := os.Create(a.config.OutputPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	return buildgraph.Encode(out, graph)
}

// bindArgs grounds the goal's free variables from -arg flags and settings
// defaults.
func (a *App) bindArgs(goal logic.Literal) logic.Literal {
	subst := logic.EmptySubstitution()
	for _, name := range logic.SortedUnique(goal.Variables(nil)) {
		if v, ok := a.config.Args[name]; ok {
			subst = subst.Extend(name, logic.Constant(v))
			continue
		}
		if v, ok := a.settings.Args[name]; ok {
			subst = subst.Extend(name, logic.Constant(v))
		}
	}
	return subst.ApplyLiteral(goal)
}
