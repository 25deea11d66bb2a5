// Package logic defines the term and clause model shared by the parser, the
// resolution engine and the build-graph compiler. A program is a set of
// Horn clauses over terms; terms are either free variables, ground string
// constants, or format strings whose fragments interpolate nested terms.
package logic

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

// TermKind discriminates the closed set of term variants.
type TermKind int

const (
	// KindConstant is a ground string constant.
	KindConstant TermKind = iota
	// KindVariable is a free, clause-scoped variable.
	KindVariable
	// KindFormatString is a sequence of literal fragments interleaved with
	// nested terms. It is not ground until every embedded term is ground.
	KindFormatString
)

// Term is a logic value. Exactly one of the variant fields is meaningful,
// selected by Kind. Terms are treated as immutable after construction;
// substitution produces new terms.
type Term struct {
	Kind TermKind

	// Value holds the constant text when Kind == KindConstant.
	Value string

	// Name holds the variable name when Kind == KindVariable. Renamed
	// variables get a "~<n>" suffix so distinct clause instantiations never
	// collide.
	Name string

	// Fragments holds the format-string pieces when Kind == KindFormatString,
	// in source order.
	Fragments []Fragment
}

// Fragment is one piece of a format string: either literal text or an
// embedded term.
type Fragment struct {
	// Text is the literal content when Term is nil.
	Text string
	// Term is the interpolated term, if any.
	Term *Term
}

// Constant returns a ground constant term.
func Constant(v string) Term {
	return Term{Kind: KindConstant, Value: v}
}

// Variable returns a free variable term.
func Variable(name string) Term {
	return Term{Kind: KindVariable, Name: name}
}

// FormatString returns a format-string term over the given fragments.
func FormatString(fragments ...Fragment) Term {
	return Term{Kind: KindFormatString, Fragments: fragments}
}

// IsGround reports whether the term contains no free variables. A format
// string is ground only once every embedded term is ground.
func (t Term) IsGround() bool {
	switch t.Kind {
	case KindConstant:
		return true
	case KindVariable:
		return false
	case KindFormatString:
		for _, f := range t.Fragments {
			if f.Term != nil && !f.Term.IsGround() {
				return false
			}
		}
		return true
	}
	return false
}

// Resolve concatenates a ground format string into a constant. For constants
// it is the identity. It returns false when the term is not ground.
func (t Term) Resolve() (string, bool) {
	switch t.Kind {
	case KindConstant:
		return t.Value, true
	case KindVariable:
		return "", false
	case KindFormatString:
		var sb strings.Builder
		for _, f := range t.Fragments {
			if f.Term == nil {
				sb.WriteString(f.Text)
				continue
			}
			v, ok := f.Term.Resolve()
			if !ok {
				return "", false
			}
			sb.WriteString(v)
		}
		return sb.String(), true
	}
	return "", false
}

// Variables appends the names of all free variables in the term to dst and
// returns it. Names may repeat if the term mentions a variable twice.
func (t Term) Variables(dst []string) []string {
	switch t.Kind {
	case KindVariable:
		dst = append(dst, t.Name)
	case KindFormatString:
		for _, f := range t.Fragments {
			if f.Term != nil {
				dst = f.Term.Variables(dst)
			}
		}
	}
	return dst
}

// Equal reports structural equality.
func (t Term) Equal(o Term) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindConstant:
		return t.Value == o.Value
	case KindVariable:
		return t.Name == o.Name
	case KindFormatString:
		if len(t.Fragments) != len(o.Fragments) {
			return false
		}
		for i := range t.Fragments {
			a, b := t.Fragments[i], o.Fragments[i]
			if (a.Term == nil) != (b.Term == nil) {
				return false
			}
			if a.Term == nil {
				if a.Text != b.Text {
					return false
				}
			} else if !a.Term.Equal(*b.Term) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the term in source-like syntax, mainly for diagnostics and
// tests.
func (t Term) String() string {
	switch t.Kind {
	case KindConstant:
		return fmt.Sprintf("%q", t.Value)
	case KindVariable:
		return t.Name
	case KindFormatString:
		var sb strings.Builder
		sb.WriteString(`f"`)
		for _, f := range t.Fragments {
			if f.Term == nil {
				sb.WriteString(f.Text)
			} else {
				sb.WriteString("${")
				sb.WriteString(f.Term.String())
				sb.WriteString("}")
			}
		}
		sb.WriteString(`"`)
		return sb.String()
	}
	return "<invalid term>"
}

// renameCounter feeds fresh suffixes for clause renaming. It only ever grows;
// uniqueness is all that matters.
var renameCounter atomic.Uint64

// FreshSuffix returns a process-unique suffix for variable renaming.
func FreshSuffix() uint64 {
	return renameCounter.Add(1)
}

// Rename returns a copy of the term with every variable name suffixed by
// "~<n>". Constants are returned unchanged.
func (t Term) Rename(n uint64) Term {
	switch t.Kind {
	case KindConstant:
		return t
	case KindVariable:
		// Strip any previous rename suffix so chains do not accumulate.
		base := t.Name
		if i := strings.IndexByte(base, '~'); i >= 0 {
			base = base[:i]
		}
		return Variable(fmt.Sprintf("%s~%d", base, n))
	case KindFormatString:
		out := make([]Fragment, len(t.Fragments))
		for i, f := range t.Fragments {
			if f.Term == nil {
				out[i] = f
				continue
			}
			rt := f.Term.Rename(n)
			out[i] = Fragment{Term: &rt}
		}
		return FormatString(out...)
	}
	return t
}

// SortedUnique returns names deduplicated and sorted, a convenience for
// deterministic diagnostics.
func SortedUnique(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
