// Package parser turns bricklog source text into a logic.Program. Parsing
// is pure: the same input always yields the same program, and no state
// survives a Parse call.
//
// The surface grammar:
//
//	program := { clause }
//	clause  := literal "." | literal ":-" body "."
//	body    := or
//	or      := and { ";" and }
//	and     := merge { "," merge }
//	merge   := unary { "::" unary }
//	unary   := "!" unary | "(" body ")" | literal
//	literal := ident [ "(" term { "," term } ")" ]
//	term    := string | fstring | ident        (idents in argument position are variables)
//
// Comments run from '#' to end of line.
package parser

import (
	"github.com/vk/bricklog/internal/logic"
)

// Expression is the parsed body of a rule before translation into flat
// clause bodies. It mirrors the operator structure of the source.
type Expression struct {
	// Exactly one of the following shapes holds.
	Lit        *logic.Literal
	And        []*Expression
	Or         []*Expression
	MergeLeft  *Expression
	MergeRight *Expression
}

// SurfaceClause is one clause as written, before or-splitting.
type SurfaceClause struct {
	Head logic.Literal
	Body *Expression // nil for facts
	Span logic.SourceSpan
}

type parser struct {
	lx  *lexer
	tok token
}

// Parse parses a whole source file into a Program. The second return value
// carries the surface clauses, which the CLI uses for proof-tree printing.
func Parse(src string) (*logic.Program, []SurfaceClause, error) {
	p := &parser{lx: newLexer(src)}
	if err := p.bump(); err != nil {
		return nil, nil, err
	}

	var surface []SurfaceClause
	var clauses []logic.Clause
	for p.tok.kind != tokEOF {
		sc, err := p.parseClause()
		if err != nil {
			return nil, nil, err
		}
		surface = append(surface, sc)
		flat, err := translate(sc)
		if err != nil {
			return nil, nil, err
		}
		clauses = append(clauses, flat...)
	}
	return logic.NewProgram(clauses), surface, nil
}

// ParseGoal parses a single query literal, e.g. `stage("final")`.
func ParseGoal(src string) (logic.Literal, error) {
	p := &parser{lx: newLexer(src)}
	if err := p.bump(); err != nil {
		return logic.Literal{}, err
	}
	lit, err := p.parseLiteral()
	if err != nil {
		return logic.Literal{}, err
	}
	if p.tok.kind != tokEOF && p.tok.kind != tokDot {
		return logic.Literal{}, syntaxErrorf(p.tok.span, []string{tokEOF.String()},
			"unexpected %s after goal", p.tok.kind)
	}
	return lit, nil
}

func (p *parser) bump() *SyntaxError {
	tok, err := p.lx.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) expect(kind tokenKind) (token, *SyntaxError) {
	if p.tok.kind != kind {
		return token{}, syntaxErrorf(p.tok.span, []string{kind.String()},
			"unexpected %s", p.tok.kind)
	}
	t := p.tok
	if err := p.bump(); err != nil {
		return token{}, err
	}
	return t, nil
}

func (p *parser) parseClause() (SurfaceClause, error) {
	start := p.tok.span
	head, err := p.parseLiteral()
	if err != nil {
		return SurfaceClause{}, err
	}

	switch p.tok.kind {
	case tokDot:
		if err := p.bump(); err != nil {
			return SurfaceClause{}, err
		}
		return SurfaceClause{Head: head, Span: start}, nil
	case tokTurnstile:
		if err := p.bump(); err != nil {
			return SurfaceClause{}, err
		}
		body, err := p.parseOr()
		if err != nil {
			return SurfaceClause{}, err
		}
		if _, err := p.expect(tokDot); err != nil {
			return SurfaceClause{}, err
		}
		return SurfaceClause{Head: head, Body: body, Span: start}, nil
	default:
		return SurfaceClause{}, syntaxErrorf(p.tok.span,
			[]string{tokDot.String(), tokTurnstile.String()},
			"unexpected %s after clause head", p.tok.kind)
	}
}

func (p *parser) parseOr() (*Expression, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	alts := []*Expression{first}
	for p.tok.kind == tokSemi {
		if err := p.bump(); err != nil {
			return nil, err
		}
		next, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		alts = append(alts, next)
	}
	if len(alts) == 1 {
		return first, nil
	}
	return &Expression{Or: alts}, nil
}

func (p *parser) parseAnd() (*Expression, error) {
	first, err := p.parseMerge()
	if err != nil {
		return nil, err
	}
	conj := []*Expression{first}
	for p.tok.kind == tokComma {
		if err := p.bump(); err != nil {
			return nil, err
		}
		next, err := p.parseMerge()
		if err != nil {
			return nil, err
		}
		conj = append(conj, next)
	}
	if len(conj) == 1 {
		return first, nil
	}
	return &Expression{And: conj}, nil
}

func (p *parser) parseMerge() (*Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokMerge {
		if err := p.bump(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Expression{MergeLeft: left, MergeRight: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (*Expression, error) {
	switch p.tok.kind {
	case tokBang:
		span := p.tok.span
		if err := p.bump(); err != nil {
			return nil, err
		}
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if inner.Lit == nil {
			return nil, syntaxErrorf(span, []string{"literal"},
				"negation applies to a single literal")
		}
		lit := *inner.Lit
		lit.Negated = !lit.Negated
		return &Expression{Lit: &lit}, nil
	case tokLParen:
		if err := p.bump(); err != nil {
			return nil, err
		}
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return inner, nil
	case tokIdent:
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		return &Expression{Lit: &lit}, nil
	default:
		return nil, syntaxErrorf(p.tok.span,
			[]string{"literal", "'('", "'!'"},
			"unexpected %s in rule body", p.tok.kind)
	}
}

func (p *parser) parseLiteral() (logic.Literal, error) {
	ident, err := p.expect(tokIdent)
	if err != nil {
		return logic.Literal{}, err
	}
	lit := logic.Literal{Predicate: ident.text, Span: ident.span}

	if p.tok.kind != tokLParen {
		return lit, nil
	}
	if err := p.bump(); err != nil {
		return logic.Literal{}, err
	}
	for {
		term, terr := p.parseTerm()
		if terr != nil {
			return logic.Literal{}, terr
		}
		lit.Args = append(lit.Args, term)
		if p.tok.kind == tokComma {
			if err := p.bump(); err != nil {
				return logic.Literal{}, err
			}
			continue
		}
		break
	}
	closing, err := p.expect(tokRParen)
	if err != nil {
		return logic.Literal{}, err
	}
	lit.Span.Length = closing.span.Offset + closing.span.Length - lit.Span.Offset
	return lit, nil
}

func (p *parser) parseTerm() (logic.Term, error) {
	switch p.tok.kind {
	case tokString:
		t := logic.Constant(p.tok.text)
		if err := p.bump(); err != nil {
			return logic.Term{}, err
		}
		return t, nil
	case tokFString:
		t := logic.FormatString(p.tok.fragments...)
		if err := p.bump(); err != nil {
			return logic.Term{}, err
		}
		return t, nil
	case tokIdent:
		t := logic.Variable(p.tok.text)
		if err := p.bump(); err != nil {
			return logic.Term{}, err
		}
		return t, nil
	default:
		return logic.Term{}, syntaxErrorf(p.tok.span,
			[]string{"string", "format string", "variable"},
			"unexpected %s in argument position", p.tok.kind)
	}
}
