package parser

import (
	"fmt"
	"strings"

	"github.com/vk/bricklog/internal/logic"
)

// SyntaxError describes a parse failure with the offending span and the
// token context the parser expected at that point.
type SyntaxError struct {
	Span     logic.SourceSpan
	Message  string
	Expected []string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	if len(e.Expected) == 0 {
		return fmt.Sprintf("syntax error at %s: %s", e.Span, e.Message)
	}
	return fmt.Sprintf("syntax error at %s: %s (expected %s)",
		e.Span, e.Message, strings.Join(e.Expected, " or "))
}

func syntaxErrorf(span logic.SourceSpan, expected []string, format string, args ...any) *SyntaxError {
	return &SyntaxError{
		Span:     span,
		Message:  fmt.Sprintf(format, args...),
		Expected: expected,
	}
}
