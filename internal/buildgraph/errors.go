package buildgraph

import (
	"fmt"
	"strings"

	"github.com/vk/bricklog/internal/logic"
)

// UnknownStageReferenceError reports a cross-stage copy whose stage name
// matches no provable goal in the program.
type UnknownStageReferenceError struct {
	Stage string
	Span  logic.SourceSpan
}

// Error implements the error interface.
func (e *UnknownStageReferenceError) Error() string {
	return fmt.Sprintf("unknown stage %q referenced at %s", e.Stage, e.Span)
}

// CyclicStageError reports stages that copy from each other, directly or
// transitively. The chain lists the stages in reference order, ending with
// the repeated one.
type CyclicStageError struct {
	Chain []string
}

// Error implements the error interface.
func (e *CyclicStageError) Error() string {
	return fmt.Sprintf("cyclic stage reference: %s", strings.Join(e.Chain, " -> "))
}

// MissingBaseError reports an image operation that has no preceding base
// image selection in its derivation.
type MissingBaseError struct {
	Literal logic.Literal
	Span    logic.SourceSpan
}

// Error implements the error interface.
func (e *MissingBaseError) Error() string {
	return fmt.Sprintf("operation %s at %s has no base image; a stage must start with from",
		e.Literal.String(), e.Span)
}

// UngroundOperationError reports an image operation that still carries a
// free variable. The resolution engine should never hand the compiler such
// a derivation; this is the compiler's own consistency check.
type UngroundOperationError struct {
	Literal logic.Literal
}

// Error implements the error interface.
func (e *UngroundOperationError) Error() string {
	return fmt.Sprintf("operation %s is not fully ground", e.Literal.String())
}
