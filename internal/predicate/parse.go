package predicate

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	rserrors "github.com/arkilian/ringsplit/internal/errors"
	"github.com/arkilian/ringsplit/pkg/types"
)

// Opaque is a literal of a column whose type has no known order (uuid, blob,
// timestamp, ...). It takes part in equality only.
type Opaque string

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokAnd
	tokIn
	tokBetween
	tokEq
	tokLt
	tokLe
	tokGt
	tokGe
	tokComma
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

var keywords = map[string]tokenKind{
	"AND":     tokAnd,
	"IN":      tokIn,
	"BETWEEN": tokBetween,
}

// lexer tokenizes a conjunction of column comparisons.
type lexer struct {
	input   string
	pos     int
	readPos int
	ch      byte
}

func newLexer(input string) *lexer {
	l := &lexer{input: input}
	l.readChar()
	return l
}

func (l *lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *lexer) next() (token, error) {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
	start := l.pos

	var tok token
	switch l.ch {
	case 0:
		return token{kind: tokEOF, pos: start}, nil
	case '=':
		tok = token{kind: tokEq, text: "=", pos: start}
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token{kind: tokLe, text: "<=", pos: start}
		} else {
			tok = token{kind: tokLt, text: "<", pos: start}
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token{kind: tokGe, text: ">=", pos: start}
		} else {
			tok = token{kind: tokGt, text: ">", pos: start}
		}
	case ',':
		tok = token{kind: tokComma, text: ",", pos: start}
	case '(':
		tok = token{kind: tokLParen, text: "(", pos: start}
	case ')':
		tok = token{kind: tokRParen, text: ")", pos: start}
	case '\'':
		return l.readQuoted('\'', tokString)
	case '"':
		return l.readQuoted('"', tokIdent)
	default:
		switch {
		case isIdentStart(l.ch):
			return l.readIdentifier(), nil
		case isDigit(l.ch) || ((l.ch == '-' || l.ch == '+') && isDigit(l.peekChar())):
			return l.readNumber(), nil
		default:
			return token{}, fmt.Errorf("unexpected character %q at %d", l.ch, start)
		}
	}
	l.readChar()
	return tok, nil
}

func (l *lexer) readIdentifier() token {
	start := l.pos
	for isIdentStart(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	text := l.input[start:l.pos]
	if kind, ok := keywords[strings.ToUpper(text)]; ok {
		return token{kind: kind, text: strings.ToUpper(text), pos: start}
	}
	return token{kind: tokIdent, text: text, pos: start}
}

func (l *lexer) readNumber() token {
	start := l.pos
	l.readChar()
	for isDigit(l.ch) || l.ch == '.' || l.ch == 'e' || l.ch == 'E' ||
		((l.ch == '-' || l.ch == '+') && (l.input[l.pos-1] == 'e' || l.input[l.pos-1] == 'E')) {
		l.readChar()
	}
	return token{kind: tokNumber, text: l.input[start:l.pos], pos: start}
}

// readQuoted reads a quoted literal where a doubled quote escapes itself.
func (l *lexer) readQuoted(quote byte, kind tokenKind) (token, error) {
	start := l.pos
	var sb strings.Builder
	l.readChar()
	for {
		switch {
		case l.ch == 0:
			return token{}, fmt.Errorf("unterminated literal at %d", start)
		case l.ch == quote && l.peekChar() == quote:
			sb.WriteByte(quote)
			l.readChar()
		case l.ch == quote:
			l.readChar()
			return token{kind: kind, text: sb.String(), pos: start}, nil
		default:
			sb.WriteByte(l.ch)
		}
		l.readChar()
	}
}

func isIdentStart(ch byte) bool {
	return ch == '_' || unicode.IsLetter(rune(ch))
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// ParseConjunction parses comparisons joined by AND into a Map over the given
// columns. Supported forms are `col = lit`, `col < lit` (and <=, >, >=),
// `col IN (lit, ...)` and `col BETWEEN lit AND lit`. Literals are typed by the
// column's value type. Empty text yields the unconstrained map.
func ParseConjunction(columns []types.Column, text string) (Map, error) {
	p := &parser{lex: newLexer(text), columns: make(map[string]types.Column, len(columns))}
	for _, c := range columns {
		p.columns[c.Name] = c
	}
	m, err := p.parse()
	if err != nil {
		return Map{}, rserrors.NewValidationError(rserrors.CodeInvalidPredicate, err.Error()).
			WithDetails(map[string]interface{}{"predicate": text})
	}
	return m, nil
}

type parser struct {
	lex     *lexer
	columns map[string]types.Column
	cur     token
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *parser) expect(kind tokenKind, what string) error {
	if p.cur.kind != kind {
		return fmt.Errorf("expected %s at %d, got %q", what, p.cur.pos, p.cur.text)
	}
	return p.advance()
}

func (p *parser) parse() (Map, error) {
	m := Unconstrained()
	if err := p.advance(); err != nil {
		return m, err
	}
	if p.cur.kind == tokEOF {
		return m, nil
	}
	for {
		col, d, err := p.parseComparison()
		if err != nil {
			return Map{}, err
		}
		m = m.With(col, d)
		if p.cur.kind == tokEOF {
			return m, nil
		}
		if err := p.expect(tokAnd, "AND"); err != nil {
			return Map{}, err
		}
	}
}

func (p *parser) parseComparison() (types.Column, Domain, error) {
	if p.cur.kind != tokIdent {
		return types.Column{}, Domain{}, fmt.Errorf("expected column name at %d, got %q", p.cur.pos, p.cur.text)
	}
	col, ok := p.columns[p.cur.text]
	if !ok {
		return types.Column{}, Domain{}, fmt.Errorf("unknown column %q", p.cur.text)
	}
	if err := p.advance(); err != nil {
		return col, Domain{}, err
	}

	op := p.cur.kind
	if err := p.advance(); err != nil {
		return col, Domain{}, err
	}

	switch op {
	case tokEq, tokLt, tokLe, tokGt, tokGe:
		v, err := p.parseLiteral(col)
		if err != nil {
			return col, Domain{}, err
		}
		var r Range
		switch op {
		case tokEq:
			r = Equal(v)
		case tokLt:
			r = LessThan(v)
		case tokLe:
			r = LessThanOrEqual(v)
		case tokGt:
			r = GreaterThan(v)
		case tokGe:
			r = GreaterThanOrEqual(v)
		}
		if op != tokEq && !IsSupported(v) {
			return col, Domain{}, fmt.Errorf("column %q of type %s has no order", col.Name, col.Type)
		}
		return col, OfRanges(r), nil

	case tokIn:
		if err := p.expect(tokLParen, "("); err != nil {
			return col, Domain{}, err
		}
		var values []Value
		for {
			v, err := p.parseLiteral(col)
			if err != nil {
				return col, Domain{}, err
			}
			values = append(values, v)
			if p.cur.kind == tokRParen {
				break
			}
			if err := p.expect(tokComma, ","); err != nil {
				return col, Domain{}, err
			}
		}
		if err := p.advance(); err != nil {
			return col, Domain{}, err
		}
		return col, MultipleValues(values...), nil

	case tokBetween:
		low, err := p.parseLiteral(col)
		if err != nil {
			return col, Domain{}, err
		}
		if err := p.expect(tokAnd, "AND"); err != nil {
			return col, Domain{}, err
		}
		high, err := p.parseLiteral(col)
		if err != nil {
			return col, Domain{}, err
		}
		if !IsSupported(low) {
			return col, Domain{}, fmt.Errorf("column %q of type %s has no order", col.Name, col.Type)
		}
		return col, OfRanges(Between(low, high)), nil

	default:
		return col, Domain{}, fmt.Errorf("unsupported operator after column %q", col.Name)
	}
}

// parseLiteral consumes one literal token and converts it to the column's type.
func (p *parser) parseLiteral(col types.Column) (Value, error) {
	tok := p.cur
	if tok.kind != tokNumber && tok.kind != tokString && tok.kind != tokIdent {
		return nil, fmt.Errorf("expected literal for %q at %d, got %q", col.Name, tok.pos, tok.text)
	}
	v, err := convertLiteral(col, tok)
	if err != nil {
		return nil, err
	}
	return v, p.advance()
}

func convertLiteral(col types.Column, tok token) (Value, error) {
	switch col.Type {
	case types.TypeLong:
		if tok.kind != tokNumber {
			break
		}
		n, err := strconv.ParseInt(tok.text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid long literal %q for %q", tok.text, col.Name)
		}
		return n, nil
	case types.TypeDouble:
		if tok.kind != tokNumber {
			break
		}
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid double literal %q for %q", tok.text, col.Name)
		}
		return f, nil
	case types.TypeBoolean:
		if tok.kind != tokIdent {
			break
		}
		switch strings.ToLower(tok.text) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	case types.TypeString:
		if tok.kind == tokString {
			return tok.text, nil
		}
	default:
		return Opaque(tok.text), nil
	}
	return nil, fmt.Errorf("literal %q does not match type %s of %q", tok.text, col.Type, col.Name)
}
