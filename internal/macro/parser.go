package macro

import "strings"

// Node is one element of a parsed template.
type Node interface {
	node()
	source(b *strings.Builder)
}

// Text is a literal run of characters.
type Text string

// Macro is a "${...}" occurrence. Its body is itself a template so inner
// macros can be expanded first.
type Macro struct {
	Body Template
}

func (Text) node()   {}
func (*Macro) node() {}

func (t Text) source(b *strings.Builder) { b.WriteString(string(t)) }

func (m *Macro) source(b *strings.Builder) {
	b.WriteString(openToken)
	for _, n := range m.Body {
		n.source(b)
	}
	b.WriteByte(closeToken)
}

// Template is a parsed cell: an ordered sequence of text and macro nodes.
type Template []Node

// HasMacro reports whether the template holds any macro node.
func (t Template) HasMacro() bool {
	for _, n := range t {
		if _, ok := n.(*Macro); ok {
			return true
		}
	}
	return false
}

// String rebuilds the source text the template was parsed from.
func (t Template) String() string {
	var b strings.Builder
	for _, n := range t {
		n.source(&b)
	}
	return b.String()
}

// Parse turns v into a template. Parse never fails: unterminated openers
// and stray braces become text.
func Parse(v string) Template {
	p := parser{src: v}
	tpl, _ := p.sequence(false)
	return tpl
}

type parser struct {
	src string
	pos int
	// unclosed marks opener offsets already known to have no closing brace.
	unclosed map[int]bool
}

// sequence reads nodes until the end of input or, inside a macro, until
// the matching close brace. closed reports whether that brace was found.
func (p *parser) sequence(inMacro bool) (tpl Template, closed bool) {
	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			tpl = append(tpl, Text(text.String()))
			text.Reset()
		}
	}

	for p.pos < len(p.src) {
		if strings.HasPrefix(p.src[p.pos:], openToken) {
			start := p.pos
			p.pos += len(openToken)
			if p.unclosed[start] {
				text.WriteString(openToken)
				continue
			}
			body, ok := p.sequence(true)
			if !ok {
				// No closing brace after the opener: keep it as text and
				// rescan what followed at this level.
				if p.unclosed == nil {
					p.unclosed = make(map[int]bool)
				}
				p.unclosed[start] = true
				text.WriteString(openToken)
				p.pos = start + len(openToken)
				continue
			}
			flush()
			tpl = append(tpl, &Macro{Body: body})
			continue
		}
		c := p.src[p.pos]
		if c == closeToken && inMacro {
			p.pos++
			flush()
			return tpl, true
		}
		text.WriteByte(c)
		p.pos++
	}
	flush()
	return tpl, false
}
