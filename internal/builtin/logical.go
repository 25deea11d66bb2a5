package builtin

import "github.com/vk/bricklog/internal/logic"

// true/0 always succeeds and contributes nothing to the build graph. It
// exists so trivial rule bodies can be written explicitly.
func init() {
	register(Builtin{
		Name:         "true",
		Arity:        0,
		MayBeUnbound: []bool{},
		Op:           OpNone,
		Apply: func(lit logic.Literal) (logic.Literal, bool) {
			return lit, true
		},
	})
}
