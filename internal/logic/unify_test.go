package logic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnify(t *testing.T) {
	t.Run("matching constants", func(t *testing.T) {
		a := NewLiteral("from", Constant("alpine"))
		b := NewLiteral("from", Constant("alpine"))
		_, ok := Unify(a, b, EmptySubstitution())
		assert.True(t, ok)
	})

	t.Run("mismatching constants", func(t *testing.T) {
		a := NewLiteral("from", Constant("alpine"))
		b := NewLiteral("from", Constant("debian"))
		_, ok := Unify(a, b, EmptySubstitution())
		assert.False(t, ok)
	})

	t.Run("different predicate or arity", func(t *testing.T) {
		_, ok := Unify(NewLiteral("a"), NewLiteral("b"), EmptySubstitution())
		assert.False(t, ok)

		_, ok = Unify(NewLiteral("a", Constant("x")), NewLiteral("a"), EmptySubstitution())
		assert.False(t, ok)
	})

	t.Run("variable binds to constant", func(t *testing.T) {
		a := NewLiteral("stage", Variable("X"))
		b := NewLiteral("stage", Constant("final"))
		s, ok := Unify(a, b, EmptySubstitution())
		require.True(t, ok)
		bound, ok := s.Lookup("X")
		require.True(t, ok)
		assert.Equal(t, Constant("final"), bound)
	})

	t.Run("bound variable must agree", func(t *testing.T) {
		s := EmptySubstitution().Extend("X", Constant("final"))
		a := NewLiteral("stage", Variable("X"))
		b := NewLiteral("stage", Constant("build"))
		_, ok := Unify(a, b, s)
		assert.False(t, ok)
	})

	t.Run("variable aliasing propagates", func(t *testing.T) {
		s, ok := UnifyTerms(Variable("X"), Variable("Y"), EmptySubstitution())
		require.True(t, ok)
		s, ok = UnifyTerms(Variable("Y"), Constant("v"), s)
		require.True(t, ok)
		assert.Equal(t, Constant("v"), s.Apply(Variable("X")))
	})

	t.Run("extend does not mutate the receiver", func(t *testing.T) {
		base := EmptySubstitution().Extend("A", Constant("1"))
		_ = base.Extend("B", Constant("2"))
		assert.Equal(t, 1, base.Len())
	})
}

func TestUnifyFormatStrings(t *testing.T) {
	t.Run("ground format string collapses before comparison", func(t *testing.T) {
		c := Constant("3.20")
		fs := FormatString(Fragment{Text: "alpine:"}, Fragment{Term: &c})
		_, ok := UnifyTerms(fs, Constant("alpine:3.20"), EmptySubstitution())
		assert.True(t, ok)
	})

	t.Run("format string grounds through the substitution", func(t *testing.T) {
		v := Variable("Tag")
		fs := FormatString(Fragment{Text: "alpine:"}, Fragment{Term: &v})
		s := EmptySubstitution().Extend("Tag", Constant("3.20"))
		s2, ok := UnifyTerms(fs, Variable("Ref"), s)
		require.True(t, ok)
		assert.Equal(t, Constant("alpine:3.20"), s2.Apply(Variable("Ref")))
	})

	t.Run("unground format string binds to an unbound variable", func(t *testing.T) {
		v := Variable("Tag")
		fs := FormatString(Fragment{Text: "alpine:"}, Fragment{Term: &v})
		s, ok := UnifyTerms(Variable("Ref"), fs, EmptySubstitution())
		require.True(t, ok)
		_, bound := s.Lookup("Ref")
		assert.True(t, bound)
	})

	t.Run("unground format string rejects a constant", func(t *testing.T) {
		v := Variable("Tag")
		fs := FormatString(Fragment{Text: "alpine:"}, Fragment{Term: &v})
		_, ok := UnifyTerms(fs, Constant("alpine:latest"), EmptySubstitution())
		assert.False(t, ok)
	})
}

func TestOccursCheck(t *testing.T) {
	v := Variable("X")
	fs := FormatString(Fragment{Text: "v"}, Fragment{Term: &v})
	_, ok := UnifyTerms(Variable("X"), fs, EmptySubstitution())
	assert.False(t, ok, "a variable must not bind to a term containing itself")
}
