package frontend

import (
	"errors"
	"fmt"

	"github.com/vk/bricklog/internal/buildgraph"
	"github.com/vk/bricklog/internal/logic"
	"github.com/vk/bricklog/internal/parser"
	"github.com/vk/bricklog/internal/solver"
)

// ProtocolError reports a malformed or out-of-order message at the session
// boundary, or a failed daemon sub-request. It closes the exchange it
// occurred in; the daemon's own retry policy decides what happens next.
type ProtocolError struct {
	Code    string
	Message string
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error (%s): %s", e.Code, e.Message)
}

func protocolErrorf(code, format string, args ...any) *ProtocolError {
	return &ProtocolError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Protocol error codes.
const (
	CodeBadMessage    = "bad-message"
	CodeBadHandshake  = "bad-handshake"
	CodeUnsupported   = "unsupported"
	CodeSubRequest    = "sub-request-failed"
	CodeDuplicateID   = "duplicate-id"
	CodeUnknownID     = "unknown-id"
	CodeSessionClosed = "session-closed"
)

// toWireError classifies an error into the wire shape, attributing a source
// span where one is carried.
func toWireError(err error) WireError {
	we := WireError{Kind: "internal", Message: err.Error()}
	span := logic.SourceSpan{}

	var syn *parser.SyntaxError
	var strat *solver.StratificationError
	var unbound *solver.UnboundArgumentError
	var diverge *solver.RecursionDivergenceError
	var unknownPred *solver.UnknownPredicateError
	var failure *solver.FailureError
	var unknownStage *buildgraph.UnknownStageReferenceError
	var cyclic *buildgraph.CyclicStageError
	var missingBase *buildgraph.MissingBaseError
	var unground *buildgraph.UngroundOperationError
	var proto *ProtocolError

	switch {
	case errors.As(err, &syn):
		we.Kind = "syntax"
		span = syn.Span
	case errors.As(err, &strat):
		we.Kind = "stratification"
		span = strat.Span
	case errors.As(err, &unbound):
		we.Kind = "unbound-argument"
		span = unbound.Span
	case errors.As(err, &diverge):
		we.Kind = "recursion-divergence"
		span = diverge.Span
	case errors.As(err, &unknownPred):
		we.Kind = "unknown-predicate"
		span = unknownPred.Span
	case errors.As(err, &unknownStage):
		we.Kind = "unknown-stage"
		span = unknownStage.Span
	case errors.As(err, &cyclic):
		we.Kind = "cyclic-stage"
	case errors.As(err, &missingBase):
		we.Kind = "missing-base"
		span = missingBase.Span
	case errors.As(err, &unground):
		we.Kind = "unground-operation"
	case errors.As(err, &failure):
		we.Kind = "compilation-failed"
		// The deepest branch failure may carry a finer kind and span.
		for _, f := range failure.Failures {
			inner := toWireError(f)
			if inner.Kind != "internal" {
				we.Kind = inner.Kind
				span = logic.SourceSpan{Line: inner.Line, Column: inner.Column}
				break
			}
		}
	case errors.As(err, &proto):
		we.Kind = "protocol"
	}

	we.Line = span.Line
	we.Column = span.Column
	return we
}
