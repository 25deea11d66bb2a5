package solver

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/bricklog/internal/builtin"
	"github.com/vk/bricklog/internal/logic"
	"github.com/vk/bricklog/internal/parser"
)

func mustParse(t *testing.T, src string) *logic.Program {
	t.Helper()
	prog, _, err := parser.Parse(src)
	require.NoError(t, err)
	return prog
}

func mustGoal(t *testing.T, src string) logic.Literal {
	t.Helper()
	goal, err := parser.ParseGoal(src)
	require.NoError(t, err)
	return goal
}

func opNames(d *Derivation) []string {
	var names []string
	for _, s := range d.Operations() {
		names = append(names, string(s.Builtin.Op))
	}
	return names
}

func TestSolveBasics(t *testing.T) {
	t.Run("builtin goal proves directly", func(t *testing.T) {
		prog := mustParse(t, `ready :- true.`)
		d, err := First(context.Background(), prog, mustGoal(t, `from("alpine")`), Options{})
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, []string{"from"}, opNames(d))
	})

	t.Run("fact proves its goal", func(t *testing.T) {
		prog := mustParse(t, `base("alpine").`)
		d, err := First(context.Background(), prog, mustGoal(t, `base("alpine")`), Options{})
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Empty(t, d.Operations())
	})

	t.Run("rule chain binds variables", func(t *testing.T) {
		prog := mustParse(t, `
			base("alpine").
			img(X) :- base(X), from(X).
		`)
		d, err := First(context.Background(), prog, mustGoal(t, `img(Ref)`), Options{})
		require.NoError(t, err)
		ops := d.Operations()
		require.Len(t, ops, 1)
		assert.Equal(t, logic.Constant("alpine"), ops[0].Literal.Args[0])
	})

	t.Run("operations keep body order", func(t *testing.T) {
		prog := mustParse(t, `
			stage("build") :- from("rust")::run("cargo build")::run("cargo test").
		`)
		d, err := First(context.Background(), prog, mustGoal(t, `stage("build")`), Options{})
		require.NoError(t, err)
		assert.Equal(t, []string{"from", "run", "run"}, opNames(d))
	})

	t.Run("format strings ground through bindings", func(t *testing.T) {
		prog := mustParse(t, `
			tag("3.20").
			img :- tag(T), from(f"alpine:${T}").
		`)
		d, err := First(context.Background(), prog, mustGoal(t, `img`), Options{})
		require.NoError(t, err)
		ops := d.Operations()
		require.Len(t, ops, 1)
		assert.Equal(t, logic.Constant("alpine:3.20"), ops[0].Literal.Args[0])
	})

	t.Run("unknown predicate fails the goal", func(t *testing.T) {
		prog := mustParse(t, `a :- true.`)
		_, err := First(context.Background(), prog, mustGoal(t, `missing("x")`), Options{})
		require.Error(t, err)
		var unknown *UnknownPredicateError
		assert.ErrorAs(t, err, &unknown)
	})
}

func TestSolveBacktracking(t *testing.T) {
	t.Run("first derivation follows clause order", func(t *testing.T) {
		prog := mustParse(t, `
			img(X) :- from("debian"), tagged(X).
			img(X) :- from("alpine"), tagged(X).
			tagged("v1").
		`)
		d, err := First(context.Background(), prog, mustGoal(t, `img("v1")`), Options{})
		require.NoError(t, err)
		ops := d.Operations()
		require.Len(t, ops, 1)
		assert.Equal(t, logic.Constant("debian"), ops[0].Literal.Args[0])
	})

	t.Run("failed branch recovers via sibling clause", func(t *testing.T) {
		prog := mustParse(t, `
			pick("wrong").
			pick("right").
			s :- pick("right"), from("alpine").
		`)
		d, err := First(context.Background(), prog, mustGoal(t, `s`), Options{})
		require.NoError(t, err)
		require.NotNil(t, d)
	})

	t.Run("all variants enumerated in clause order", func(t *testing.T) {
		prog := mustParse(t, `
			img :- from("debian").
			img :- from("alpine").
		`)
		all, err := SolveAll(context.Background(), prog, mustGoal(t, `img`), Options{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, logic.Constant("debian"), all[0].Operations()[0].Literal.Args[0])
		assert.Equal(t, logic.Constant("alpine"), all[1].Operations()[0].Literal.Args[0])
	})

	t.Run("stream is lazy and exhaustible", func(t *testing.T) {
		prog := mustParse(t, `
			v("1"). v("2"). v("3").
		`)
		stream, err := Solve(prog, mustGoal(t, `v(X)`), Options{})
		require.NoError(t, err)
		var seen []string
		for {
			d, err := stream.Next(context.Background())
			require.NoError(t, err)
			if d == nil {
				break
			}
			seen = append(seen, d.Goal.Args[0].Value)
		}
		assert.Equal(t, []string{"1", "2", "3"}, seen)
		assert.NoError(t, stream.Failure())
	})
}

func TestSolveFailures(t *testing.T) {
	t.Run("unbound builtin argument surfaces", func(t *testing.T) {
		prog := mustParse(t, `app(X) :- run(X).`)
		_, err := First(context.Background(), prog, mustGoal(t, `app(Cmd)`), Options{})
		require.Error(t, err)
		var unbound *UnboundArgumentError
		require.ErrorAs(t, err, &unbound)
		assert.Contains(t, unbound.Variables, "Cmd")
	})

	t.Run("later literal may ground an earlier builtin", func(t *testing.T) {
		prog := mustParse(t, `
			cmd("make").
			app :- run(C), cmd(C).
		`)
		d, err := First(context.Background(), prog, mustGoal(t, `app`), Options{})
		require.NoError(t, err)
		ops := d.Operations()
		require.Len(t, ops, 1)
		assert.Equal(t, logic.Constant("make"), ops[0].Literal.Args[0])
	})

	t.Run("every branch failing aggregates deepest failures", func(t *testing.T) {
		prog := mustParse(t, `
			s :- from("alpine"), missingish("x").
			missingish("y").
		`)
		_, err := First(context.Background(), prog, mustGoal(t, `s`), Options{})
		require.Error(t, err)
		var failure *FailureError
		require.ErrorAs(t, err, &failure)
		assert.NotEmpty(t, failure.Failures)
	})

	t.Run("cancellation stops the search", func(t *testing.T) {
		prog := mustParse(t, `
			n("0"). n("1").
			s :- n(A), n(B), n(C), run(f"${A}${B}${C}").
		`)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := First(ctx, prog, mustGoal(t, `s`), Options{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSolveRecursion(t *testing.T) {
	t.Run("progressing recursion terminates", func(t *testing.T) {
		prog := mustParse(t, `
			layer("", "done").
			layer(N, Out) :- string_concat(M, "i", N), layer(M, Out), run(f"step ${N}").
		`)
		d, err := First(context.Background(), prog, mustGoal(t, `layer("iii", Out)`), Options{})
		require.NoError(t, err)
		assert.Equal(t, []string{"run", "run", "run"}, opNames(d))
	})

	t.Run("unprogressing recursion detected", func(t *testing.T) {
		prog := mustParse(t, `loop :- loop.`)
		_, err := First(context.Background(), prog, mustGoal(t, `loop`), Options{})
		require.Error(t, err)
		var div *RecursionDivergenceError
		assert.ErrorAs(t, err, &div)
	})

	t.Run("depth cap bounds runaway recursion", func(t *testing.T) {
		prog := mustParse(t, `
			grow(N) :- string_concat(N, "i", M), grow(M).
		`)
		_, err := First(context.Background(), prog, mustGoal(t, `grow("")`), Options{MaxDepth: 30})
		require.Error(t, err)
		var div *RecursionDivergenceError
		assert.ErrorAs(t, err, &div)
	})
}

func TestSolveNegation(t *testing.T) {
	t.Run("negation as failure", func(t *testing.T) {
		prog := mustParse(t, `
			excluded("debian").
			ok(X) :- base(X), !excluded(X).
			base("alpine").
			base("debian").
		`)
		d, err := First(context.Background(), prog, mustGoal(t, `ok(X)`), Options{})
		require.NoError(t, err)
		assert.Equal(t, logic.Constant("alpine"), d.Goal.Args[0])

		_, err = First(context.Background(), prog, mustGoal(t, `ok("debian")`), Options{})
		require.Error(t, err)
	})

	t.Run("capped sub-search does not prove a negation", func(t *testing.T) {
		prog := mustParse(t, `
			chain("").
			chain(N) :- string_concat(M, "i", N), chain(M).
			guard(X) :- !chain(X).
		`)
		// The positive proof exists but needs more depth than the negation's
		// remaining budget; succeeding would be unsound, so the branch must
		// die with a divergence error instead.
		_, err := First(context.Background(), prog, mustGoal(t, `guard("iiiiiiii")`), Options{MaxDepth: 6})
		require.Error(t, err)
		var div *RecursionDivergenceError
		assert.ErrorAs(t, err, &div)

		// With budget to spare the same negation resolves both ways.
		_, err = First(context.Background(), prog, mustGoal(t, `guard("iiiiiiii")`), Options{})
		require.Error(t, err)
		assert.NotErrorAs(t, err, &div)

		d, err := First(context.Background(), prog, mustGoal(t, `guard("x")`), Options{})
		require.NoError(t, err)
		assert.NotNil(t, d)
	})

	t.Run("stratification violation is a static error", func(t *testing.T) {
		prog := mustParse(t, `
			a(X) :- !b(X).
			b(X) :- a(X).
		`)
		_, err := Solve(prog, mustGoal(t, `a("x")`), Options{})
		require.Error(t, err)
		var strat *StratificationError
		assert.ErrorAs(t, err, &strat)
	})

	t.Run("stratified negation across layers is fine", func(t *testing.T) {
		prog := mustParse(t, `
			excluded("x").
			top(X) :- mid(X).
			mid(X) :- !excluded(X), base(X).
			base("y").
		`)
		_, err := Solve(prog, mustGoal(t, `top("y")`), Options{})
		assert.NoError(t, err)
	})
}

func TestDerivationShape(t *testing.T) {
	prog := mustParse(t, `
		stage("build") :- from("rust")::run("cargo build").
	`)
	d, err := First(context.Background(), prog, mustGoal(t, `stage("build")`), Options{})
	require.NoError(t, err)

	t.Run("root is the goal", func(t *testing.T) {
		assert.Equal(t, "stage", d.Root.Literal.Predicate)
		require.NotNil(t, d.Root.Clause)
		require.Len(t, d.Root.Children, 2)
		assert.Equal(t, builtin.OpFrom, d.Root.Children[0].Builtin.Op)
		assert.Equal(t, builtin.OpRun, d.Root.Children[1].Builtin.Op)
	})

	t.Run("render shows the proof tree", func(t *testing.T) {
		var sb strings.Builder
		require.NoError(t, d.Render(&sb))
		out := sb.String()
		assert.Contains(t, out, `stage("build")`)
		assert.Contains(t, out, "[builtin]")
		assert.True(t, strings.HasPrefix(strings.Split(out, "\n")[1], "  "),
			"children are indented under the goal")
	})
}

func TestSolveIsRepeatable(t *testing.T) {
	prog := mustParse(t, `
		img :- from("alpine"), run("apk add curl").
	`)
	goal := mustGoal(t, `img`)
	first, err := First(context.Background(), prog, goal, Options{})
	require.NoError(t, err)
	second, err := First(context.Background(), prog, goal, Options{})
	require.NoError(t, err)

	require.Equal(t, len(first.Operations()), len(second.Operations()))
	for i := range first.Operations() {
		assert.True(t, first.Operations()[i].Literal.Equal(second.Operations()[i].Literal))
	}
}
