package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/bricklog/internal/logic"
)

func TestSelect(t *testing.T) {
	t.Run("ground image builtin matches", func(t *testing.T) {
		b, res := Select(logic.NewLiteral("from", logic.Constant("alpine")))
		require.Equal(t, Match, res)
		assert.Equal(t, OpFrom, b.Op)
	})

	t.Run("unbound argument defers", func(t *testing.T) {
		_, res := Select(logic.NewLiteral("run", logic.Variable("X")))
		assert.Equal(t, GroundnessMismatch, res)
	})

	t.Run("unknown predicate", func(t *testing.T) {
		_, res := Select(logic.NewLiteral("install", logic.Constant("curl")))
		assert.Equal(t, NoMatch, res)
	})

	t.Run("arity distinguishes copy variants", func(t *testing.T) {
		local, res := Select(logic.NewLiteral("copy",
			logic.Constant("src"), logic.Constant("dst")))
		require.Equal(t, Match, res)
		assert.Equal(t, OpCopy, local.Op)

		cross, res := Select(logic.NewLiteral("copy",
			logic.Constant("build"), logic.Constant("src"), logic.Constant("dst")))
		require.Equal(t, Match, res)
		assert.Equal(t, OpCopyFrom, cross.Op)
	})

	t.Run("true always succeeds", func(t *testing.T) {
		b, res := Select(logic.NewLiteral("true"))
		require.Equal(t, Match, res)
		_, ok := b.Apply(logic.NewLiteral("true"))
		assert.True(t, ok)
	})
}

func TestStringConcat(t *testing.T) {
	apply := func(t *testing.T, args ...logic.Term) (logic.Literal, bool) {
		t.Helper()
		lit := logic.NewLiteral("string_concat", args...)
		b, res := Select(lit)
		require.Equal(t, Match, res)
		return b.Apply(lit)
	}

	t.Run("forward mode derives the concatenation", func(t *testing.T) {
		out, ok := apply(t, logic.Constant("foo"), logic.Constant("bar"), logic.Variable("C"))
		require.True(t, ok)
		assert.Equal(t, logic.Constant("foobar"), out.Args[2])
	})

	t.Run("suffix mode strips the suffix", func(t *testing.T) {
		out, ok := apply(t, logic.Variable("A"), logic.Constant("bar"), logic.Constant("foobar"))
		require.True(t, ok)
		assert.Equal(t, logic.Constant("foo"), out.Args[0])
	})

	t.Run("suffix mode fails when not a suffix", func(t *testing.T) {
		_, ok := apply(t, logic.Variable("A"), logic.Constant("xyz"), logic.Constant("foobar"))
		assert.False(t, ok)
	})

	t.Run("prefix mode strips the prefix", func(t *testing.T) {
		out, ok := apply(t, logic.Constant("foo"), logic.Variable("B"), logic.Constant("foobar"))
		require.True(t, ok)
		assert.Equal(t, logic.Constant("bar"), out.Args[1])
	})

	t.Run("all free defers", func(t *testing.T) {
		_, res := Select(logic.NewLiteral("string_concat",
			logic.Variable("A"), logic.Variable("B"), logic.Variable("C")))
		assert.Equal(t, GroundnessMismatch, res)
	})

	t.Run("format string argument resolves when ground", func(t *testing.T) {
		tag := logic.Constant("3.20")
		fs := logic.FormatString(
			logic.Fragment{Text: "alpine:"},
			logic.Fragment{Term: &tag},
		)
		out, ok := apply(t, fs, logic.Constant("-slim"), logic.Variable("C"))
		require.True(t, ok)
		assert.Equal(t, logic.Constant("alpine:3.20-slim"), out.Args[2])
	})
}

func TestStringCompare(t *testing.T) {
	eval := func(t *testing.T, name, a, b string) bool {
		t.Helper()
		lit := logic.NewLiteral(name, logic.Constant(a), logic.Constant(b))
		bi, res := Select(lit)
		require.Equal(t, Match, res)
		_, ok := bi.Apply(lit)
		return ok
	}

	t.Run("string_eq holds on equal strings", func(t *testing.T) {
		assert.True(t, eval(t, "string_eq", "alpine", "alpine"))
		assert.False(t, eval(t, "string_eq", "alpine", "debian"))
	})

	t.Run("string_ne holds on distinct strings", func(t *testing.T) {
		assert.True(t, eval(t, "string_ne", "alpine", "debian"))
		assert.False(t, eval(t, "string_ne", "alpine", "alpine"))
	})

	t.Run("unbound argument defers", func(t *testing.T) {
		_, res := Select(logic.NewLiteral("string_eq",
			logic.Variable("A"), logic.Constant("x")))
		assert.Equal(t, GroundnessMismatch, res)
	})
}
