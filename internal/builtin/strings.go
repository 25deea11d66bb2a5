package builtin

import (
	"strings"

	"github.com/vk/bricklog/internal/logic"
)

// string_concat(A, B, C) holds when A+B == C. Three registrations cover the
// three usable instantiation modes: any two ground arguments determine the
// third. The fully-free case is rejected at selection time by the masks.

func concatCandidate(lit logic.Literal, a, b, c string) logic.Literal {
	return groundLiteral(lit, []string{a, b, c})
}

func init() {
	// Forward mode: A and B ground, C derived.
	register(Builtin{
		Name:         "string_concat",
		Arity:        3,
		MayBeUnbound: []bool{false, false, true},
		Op:           OpNone,
		Apply: func(lit logic.Literal) (logic.Literal, bool) {
			a, okA := lit.Args[0].Resolve()
			b, okB := lit.Args[1].Resolve()
			if !okA || !okB {
				return logic.Literal{}, false
			}
			return concatCandidate(lit, a, b, a+b), true
		},
	})

	// Suffix mode: B and C ground, A derived by stripping the suffix.
	register(Builtin{
		Name:         "string_concat",
		Arity:        3,
		MayBeUnbound: []bool{true, false, false},
		Op:           OpNone,
		Apply: func(lit logic.Literal) (logic.Literal, bool) {
			b, okB := lit.Args[1].Resolve()
			c, okC := lit.Args[2].Resolve()
			if !okB || !okC {
				return logic.Literal{}, false
			}
			a, found := strings.CutSuffix(c, b)
			if !found {
				return logic.Literal{}, false
			}
			return concatCandidate(lit, a, b, c), true
		},
	})

	// Prefix mode: A and C ground, B derived by stripping the prefix.
	register(Builtin{
		Name:         "string_concat",
		Arity:        3,
		MayBeUnbound: []bool{false, true, false},
		Op:           OpNone,
		Apply: func(lit logic.Literal) (logic.Literal, bool) {
			a, okA := lit.Args[0].Resolve()
			c, okC := lit.Args[2].Resolve()
			if !okA || !okC {
				return logic.Literal{}, false
			}
			b, found := strings.CutPrefix(c, a)
			if !found {
				return logic.Literal{}, false
			}
			return concatCandidate(lit, a, b, c), true
		},
	})

	// string_eq and string_ne compare two ground strings.
	register(Builtin{
		Name:         "string_eq",
		Arity:        2,
		MayBeUnbound: []bool{false, false},
		Op:           OpNone,
		Apply: func(lit logic.Literal) (logic.Literal, bool) {
			a, okA := lit.Args[0].Resolve()
			b, okB := lit.Args[1].Resolve()
			if !okA || !okB {
				return logic.Literal{}, false
			}
			return lit, a == b
		},
	})
	register(Builtin{
		Name:         "string_ne",
		Arity:        2,
		MayBeUnbound: []bool{false, false},
		Op:           OpNone,
		Apply: func(lit logic.Literal) (logic.Literal, bool) {
			a, okA := lit.Args[0].Resolve()
			b, okB := lit.Args[1].Resolve()
			if !okA || !okB {
				return logic.Literal{}, false
			}
			return lit, a != b
		},
	})
}
