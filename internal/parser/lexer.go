package parser

import (
	"strings"

	"github.com/vk/bricklog/internal/logic"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokFString
	tokLParen
	tokRParen
	tokComma
	tokSemi
	tokDot
	tokTurnstile // :-
	tokMerge     // ::
	tokBang
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return "identifier"
	case tokString:
		return "string"
	case tokFString:
		return "format string"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokComma:
		return "','"
	case tokSemi:
		return "';'"
	case tokDot:
		return "'.'"
	case tokTurnstile:
		return "':-'"
	case tokMerge:
		return "'::'"
	case tokBang:
		return "'!'"
	}
	return "token"
}

type token struct {
	kind tokenKind
	text string
	// fragments is populated for tokFString only.
	fragments []logic.Fragment
	span      logic.SourceSpan
}

// lexer produces tokens over the input, tracking line/column positions for
// span attribution.
type lexer struct {
	src    string
	pos    int
	line   int
	column int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1, column: 1}
}

func (l *lexer) spanFrom(startOffset, startLine, startColumn int) logic.SourceSpan {
	return logic.SourceSpan{
		Line:   startLine,
		Column: startColumn,
		Offset: startOffset,
		Length: l.pos - startOffset,
	}
}

func (l *lexer) peekByte() (byte, bool) {
	if l.pos >= len(l.src) {
		return 0, false
	}
	return l.src[l.pos], true
}

func (l *lexer) advance() byte {
	c := l.src[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	return c
}

func (l *lexer) skipSpaceAndComments() {
	for {
		c, ok := l.peekByte()
		if !ok {
			return
		}
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.advance()
		case c == '#':
			for {
				c, ok := l.peekByte()
				if !ok || c == '\n' {
					break
				}
				l.advance()
			}
		default:
			return
		}
	}
}

func isIdentStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9' || c == '-'
}

// next returns the next token or a SyntaxError.
func (l *lexer) next() (token, *SyntaxError) {
	l.skipSpaceAndComments()
	startOffset, startLine, startColumn := l.pos, l.line, l.column

	c, ok := l.peekByte()
	if !ok {
		return token{kind: tokEOF, span: l.spanFrom(startOffset, startLine, startColumn)}, nil
	}

	switch c {
	case '(':
		l.advance()
		return token{kind: tokLParen, text: "(", span: l.spanFrom(startOffset, startLine, startColumn)}, nil
	case ')':
		l.advance()
		return token{kind: tokRParen, text: ")", span: l.spanFrom(startOffset, startLine, startColumn)}, nil
	case ',':
		l.advance()
		return token{kind: tokComma, text: ",", span: l.spanFrom(startOffset, startLine, startColumn)}, nil
	case ';':
		l.advance()
		return token{kind: tokSemi, text: ";", span: l.spanFrom(startOffset, startLine, startColumn)}, nil
	case '.':
		l.advance()
		return token{kind: tokDot, text: ".", span: l.spanFrom(startOffset, startLine, startColumn)}, nil
	case '!':
		l.advance()
		return token{kind: tokBang, text: "!", span: l.spanFrom(startOffset, startLine, startColumn)}, nil
	case ':':
		l.advance()
		c2, ok := l.peekByte()
		if ok && c2 == '-' {
			l.advance()
			return token{kind: tokTurnstile, text: ":-", span: l.spanFrom(startOffset, startLine, startColumn)}, nil
		}
		if ok && c2 == ':' {
			l.advance()
			return token{kind: tokMerge, text: "::", span: l.spanFrom(startOffset, startLine, startColumn)}, nil
		}
		return token{}, syntaxErrorf(l.spanFrom(startOffset, startLine, startColumn),
			[]string{"':-'", "'::'"}, "unexpected ':'")
	case '"':
		return l.lexString(startOffset, startLine, startColumn)
	}

	if c == 'f' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '"' {
		l.advance() // consume 'f'
		return l.lexFString(startOffset, startLine, startColumn)
	}

	if isIdentStart(c) {
		var sb strings.Builder
		for {
			c, ok := l.peekByte()
			if !ok || !isIdentPart(c) {
				break
			}
			sb.WriteByte(l.advance())
		}
		return token{kind: tokIdent, text: sb.String(), span: l.spanFrom(startOffset, startLine, startColumn)}, nil
	}

	return token{}, syntaxErrorf(l.spanFrom(startOffset, startLine, startColumn),
		nil, "unexpected character %q", string(c))
}

// lexString consumes a double-quoted string literal with escapes.
func (l *lexer) lexString(startOffset, startLine, startColumn int) (token, *SyntaxError) {
	l.advance() // opening quote
	var sb strings.Builder
	for {
		c, ok := l.peekByte()
		if !ok {
			return token{}, syntaxErrorf(l.spanFrom(startOffset, startLine, startColumn),
				[]string{`'"'`}, "unterminated string literal")
		}
		l.advance()
		switch c {
		case '"':
			return token{kind: tokString, text: sb.String(), span: l.spanFrom(startOffset, startLine, startColumn)}, nil
		case '\\':
			e, ok := l.peekByte()
			if !ok {
				return token{}, syntaxErrorf(l.spanFrom(startOffset, startLine, startColumn),
					nil, "string ends with an escape character")
			}
			l.advance()
			switch e {
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			default:
				// Unknown escape: keep it verbatim.
				sb.WriteByte('\\')
				sb.WriteByte(e)
			}
		default:
			sb.WriteByte(c)
		}
	}
}

// lexFString consumes a format string: literal fragments interleaved with
// ${Variable} interpolations. "\$" escapes a literal dollar sign.
func (l *lexer) lexFString(startOffset, startLine, startColumn int) (token, *SyntaxError) {
	l.advance() // opening quote
	var fragments []logic.Fragment
	var sb strings.Builder

	flush := func() {
		if sb.Len() > 0 {
			fragments = append(fragments, logic.Fragment{Text: sb.String()})
			sb.Reset()
		}
	}

	for {
		c, ok := l.peekByte()
		if !ok {
			return token{}, syntaxErrorf(l.spanFrom(startOffset, startLine, startColumn),
				[]string{`'"'`}, "unterminated format string")
		}
		l.advance()
		switch c {
		case '"':
			flush()
			if len(fragments) == 0 {
				fragments = append(fragments, logic.Fragment{Text: ""})
			}
			return token{kind: tokFString, fragments: fragments,
				span: l.spanFrom(startOffset, startLine, startColumn)}, nil
		case '\\':
			e, ok := l.peekByte()
			if !ok {
				return token{}, syntaxErrorf(l.spanFrom(startOffset, startLine, startColumn),
					nil, "format string ends with an escape character")
			}
			l.advance()
			switch e {
			case '$':
				sb.WriteByte('$')
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			default:
				sb.WriteByte('\\')
				sb.WriteByte(e)
			}
		case '$':
			b, ok := l.peekByte()
			if !ok || b != '{' {
				sb.WriteByte('$')
				continue
			}
			l.advance() // '{'
			flush()
			var name strings.Builder
			for {
				c, ok := l.peekByte()
				if !ok {
					return token{}, syntaxErrorf(l.spanFrom(startOffset, startLine, startColumn),
						[]string{"'}'"}, "unterminated interpolation in format string")
				}
				if c == '}' {
					l.advance()
					break
				}
				if !isIdentPart(c) && !(name.Len() == 0 && isIdentStart(c)) {
					return token{}, syntaxErrorf(l.spanFrom(startOffset, startLine, startColumn),
						[]string{"identifier"}, "invalid interpolation variable")
				}
				name.WriteByte(l.advance())
			}
			if name.Len() == 0 {
				return token{}, syntaxErrorf(l.spanFrom(startOffset, startLine, startColumn),
					[]string{"identifier"}, "empty interpolation in format string")
			}
			v := logic.Variable(name.String())
			fragments = append(fragments, logic.Fragment{Term: &v})
		default:
			sb.WriteByte(c)
		}
	}
}
