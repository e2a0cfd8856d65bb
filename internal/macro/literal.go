package macro

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrSyntax is returned when a literal cannot be parsed.
var ErrSyntax = errors.New("invalid literal")

// Tuple is a parenthesised literal sequence such as (6, 0, [1, 2]).
type Tuple []any

// Vars resolves identifiers that appear inside literals and macro bodies.
type Vars interface {
	Lookup(name string) (any, bool)
}

// MapVars is a fixed set of variables.
type MapVars map[string]any

// Lookup implements Vars.
func (m MapVars) Lookup(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// Chain consults each variable set in order and returns the first hit.
type Chain []Vars

// Lookup implements Vars.
func (c Chain) Lookup(name string) (any, bool) {
	for _, vars := range c {
		if vars == nil {
			continue
		}
		if v, ok := vars.Lookup(name); ok {
			return v, true
		}
	}
	return nil, false
}

// ParseLiteral evaluates a restricted literal: None, True, False, integers,
// floats, quoted strings, [lists], (tuples) and identifiers known to vars.
// None yields nil. Nothing else is evaluated; arbitrary expressions are a
// syntax error.
func ParseLiteral(s string, vars Vars) (any, error) {
	p := literalParser{src: s, vars: vars}
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected %q", p.src[p.pos:])
	}
	return v, nil
}

// IsReserved reports whether a whole cell value is evaluated as a literal:
// one of the keywords, or a list of tuples such as [(6, 0, [1, 2])].
func IsReserved(s string) bool {
	switch s {
	case "None", "True", "False":
		return true
	}
	t := strings.TrimSpace(s)
	return strings.HasPrefix(t, "[(") && strings.HasSuffix(t, ")]")
}

type literalParser struct {
	src  string
	pos  int
	vars Vars
}

func (p *literalParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrSyntax, p.pos, fmt.Sprintf(format, args...))
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *literalParser) value() (any, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return nil, p.errorf("unexpected end of input")
	}
	switch c := p.src[p.pos]; {
	case c == '[':
		p.pos++
		items, _, err := p.items(']')
		return items, err
	case c == '(':
		p.pos++
		items, trailing, err := p.items(')')
		if err != nil {
			return nil, err
		}
		if len(items) == 1 && !trailing {
			return items[0], nil
		}
		return Tuple(items), nil
	case c == '\'' || c == '"':
		return p.quoted(c)
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		return p.number()
	case c == '_' || unicode.IsLetter(rune(c)):
		return p.identifier()
	default:
		return nil, p.errorf("unexpected %q", c)
	}
}

// items reads comma separated values up to the closing delimiter.
// trailing reports a comma right before the delimiter.
func (p *literalParser) items(closing byte) (items []any, trailing bool, err error) {
	items = []any{}
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, false, p.errorf("missing %q", closing)
		}
		if p.src[p.pos] == closing {
			p.pos++
			return items, trailing, nil
		}
		v, err := p.value()
		if err != nil {
			return nil, false, err
		}
		items = append(items, v)
		trailing = false

		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, false, p.errorf("missing %q", closing)
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
			trailing = true
		case closing:
		default:
			return nil, false, p.errorf("expected ',' or %q", closing)
		}
	}
}

func (p *literalParser) quoted(quote byte) (string, error) {
	var b strings.Builder
	p.pos++
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == quote:
			p.pos++
			return b.String(), nil
		case c == '\\' && p.pos+1 < len(p.src):
			p.pos++
			switch e := p.src[p.pos]; e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(e)
			}
		default:
			b.WriteByte(c)
		}
		p.pos++
	}
	return "", p.errorf("unterminated string")
}

func (p *literalParser) number() (any, error) {
	start := p.pos
	if c := p.src[p.pos]; c == '-' || c == '+' {
		p.pos++
	}
	isFloat := false
scan:
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c >= '0' && c <= '9', c == '_':
		case c == '.':
			isFloat = true
		case c == 'e' || c == 'E':
			isFloat = true
			if p.pos+1 < len(p.src) && (p.src[p.pos+1] == '-' || p.src[p.pos+1] == '+') {
				p.pos++
			}
		default:
			break scan
		}
		p.pos++
	}
	tok := strings.ReplaceAll(p.src[start:p.pos], "_", "")
	if !isFloat {
		if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
			return n, nil
		}
	}
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		p.pos = start
		return nil, p.errorf("bad number %q", tok)
	}
	return f, nil
}

func (p *literalParser) identifier() (any, error) {
	start := p.pos
	for p.pos < len(p.src) {
		c := rune(p.src[p.pos])
		if c != '_' && !unicode.IsLetter(c) && !unicode.IsDigit(c) {
			break
		}
		p.pos++
	}
	name := p.src[start:p.pos]
	switch name {
	case "None":
		return nil, nil
	case "True":
		return true, nil
	case "False":
		return false, nil
	}
	if p.vars != nil {
		if v, ok := p.vars.Lookup(name); ok {
			return v, nil
		}
	}
	p.pos = start
	return nil, p.errorf("unknown name %q", name)
}
