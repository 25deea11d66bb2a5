package builtin

import "github.com/vk/bricklog/internal/logic"

// OpKind tags the build operation a builtin contributes, if any.
type OpKind string

const (
	// OpNone marks purely logical builtins.
	OpNone OpKind = ""
	// OpFrom selects a stage's base image.
	OpFrom OpKind = "from"
	// OpRun executes a command in the stage.
	OpRun OpKind = "run"
	// OpCopy copies from the local build context into the stage.
	OpCopy OpKind = "copy"
	// OpCopyFrom copies from another stage into this one.
	OpCopyFrom OpKind = "copy-from"
	// OpEnv sets an environment variable.
	OpEnv OpKind = "set-env"
	// OpWorkdir sets the working directory.
	OpWorkdir OpKind = "set-workdir"
	// OpEntrypoint sets the image entrypoint.
	OpEntrypoint OpKind = "set-entrypoint"
)

// imageOp builds the standard Apply for an image-producing builtin: every
// argument must resolve to a ground constant, and the resolved literal is
// returned as the unify candidate.
func imageOp(name string, arity int, op OpKind) Builtin {
	return Builtin{
		Name:         name,
		Arity:        arity,
		MayBeUnbound: make([]bool, arity),
		Op:           op,
		Apply: func(lit logic.Literal) (logic.Literal, bool) {
			values, ok := resolvedArgs(lit)
			if !ok {
				return logic.Literal{}, false
			}
			return groundLiteral(lit, values), true
		},
	}
}

func init() {
	register(imageOp("from", 1, OpFrom))
	register(imageOp("run", 1, OpRun))
	register(imageOp("copy", 2, OpCopy))
	register(imageOp("copy", 3, OpCopyFrom))
	register(imageOp("set_env", 2, OpEnv))
	register(imageOp("set_workdir", 1, OpWorkdir))
	register(imageOp("set_entrypoint", 1, OpEntrypoint))
}
