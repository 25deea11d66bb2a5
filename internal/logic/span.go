package logic

import "fmt"

// SourceSpan points at a region of the original source text. It is attached
// to literals and clauses at parse time and carried through resolution so
// that errors can be reported against the rule the user wrote, not against
// an internal representation.
type SourceSpan struct {
	// Line is 1-based.
	Line int
	// Column is 1-based and counts bytes, not runes.
	Column int
	// Offset is the byte offset from the start of the input.
	Offset int
	// Length is the byte length of the spanned region.
	Length int
}

// String renders the span in the conventional line:column form.
func (s SourceSpan) String() string {
	return fmt.Sprintf("%d:%d", s.Line, s.Column)
}

// IsZero reports whether the span carries no position information.
func (s SourceSpan) IsZero() bool {
	return s == SourceSpan{}
}
