package macro

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ----------------------------------------------------------------------------
// Innermost
// ----------------------------------------------------------------------------

func TestInnermost(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		wantOK bool
		want   Span
		body   string
	}{
		{"single", "${a}", true, Span{0, 4}, "a"},
		{"leftmost of siblings", "${a}${b}", true, Span{0, 4}, "a"},
		{"nested picks inner", "x ${outer ${inner} y}", true, Span{10, 18}, "inner"},
		{"stray close before", "}${a}", true, Span{1, 5}, "a"},
		{"unterminated", "${abc", false, Span{}, ""},
		{"no opener", "a}b", false, Span{}, ""},
		{"dollar only", "$ {a}", false, Span{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Innermost(tt.input)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.body, tt.input[got.Start+len(openToken):got.End-1])
		})
	}
}

func TestContains(t *testing.T) {
	assert.True(t, Contains("pre ${x} post"))
	assert.False(t, Contains("pre ${x post"))
	assert.False(t, Contains(""))
}

// ----------------------------------------------------------------------------
// Parse
// ----------------------------------------------------------------------------

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Template
	}{
		{"plain text", "plain", Template{Text("plain")}},
		{"empty", "", nil},
		{"single macro", "${a}", Template{&Macro{Body: Template{Text("a")}}}},
		{
			"nested query",
			"x${res.company(zip):${def_zip}}y",
			Template{
				Text("x"),
				&Macro{Body: Template{
					Text("res.company(zip):"),
					&Macro{Body: Template{Text("def_zip")}},
				}},
				Text("y"),
			},
		},
		{
			"unterminated outer keeps inner",
			"${a ${b}",
			Template{Text("${a "), &Macro{Body: Template{Text("b")}}},
		},
		{"stray close is text", "a}b", Template{Text("a}b")}},
		{"only openers", "${${${", Template{Text("${${${")}},
		{"empty macro", "${}", Template{&Macro{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.input))
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	inputs := []string{
		"plain",
		"${a}${b}",
		"Via ${street}, ${zip} ${city}",
		"${res.company(zip):${def_zip}}",
		"${a ${b}",
		"}{$}",
	}
	for _, in := range inputs {
		assert.Equal(t, in, Parse(in).String(), "input %q", in)
	}
}

func TestTemplate_HasMacro(t *testing.T) {
	assert.True(t, Parse("a ${b} c").HasMacro())
	assert.False(t, Parse("a ${b c").HasMacro())
}

// ----------------------------------------------------------------------------
// ParseLiteral
// ----------------------------------------------------------------------------

func TestParseLiteral(t *testing.T) {
	vars := MapVars{"company_id": int64(3)}

	tests := []struct {
		name  string
		input string
		want  any
	}{
		{"none", "None", nil},
		{"true", "True", true},
		{"false", " False ", false},
		{"int", "42", int64(42)},
		{"negative", "-3", int64(-3)},
		{"float", "2.5", 2.5},
		{"single quoted", "'abc'", "abc"},
		{"double quoted escape", `"a\"b"`, `a"b`},
		{"grouping", "(1)", int64(1)},
		{"one tuple", "(1,)", Tuple{int64(1)}},
		{"empty list", "[]", []any{}},
		{
			"many2many command",
			"[(6, 0, [1, 2])]",
			[]any{Tuple{int64(6), int64(0), []any{int64(1), int64(2)}}},
		},
		{"variable", "company_id", int64(3)},
		{"variable in list", "[company_id, 'x']", []any{int64(3), "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLiteral(tt.input, vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLiteral_Rejects(t *testing.T) {
	inputs := []string{"1+1", "unknown", "[1, 2", "'abc", "__import__('os')", "", "(1 2)"}
	for _, in := range inputs {
		_, err := ParseLiteral(in, MapVars{})
		assert.ErrorIs(t, err, ErrSyntax, "input %q", in)
	}
}

func TestIsReserved(t *testing.T) {
	assert.True(t, IsReserved("None"))
	assert.True(t, IsReserved("[(6,0,[])]"))
	assert.False(t, IsReserved("(1, 2)"))
	assert.False(t, IsReserved("[note]"))
	assert.False(t, IsReserved("none"))
	assert.False(t, IsReserved("[open"))
}

func TestChain(t *testing.T) {
	c := Chain{nil, MapVars{"a": 1}, MapVars{"a": 2, "b": 3}}
	v, ok := c.Lookup("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	v, ok = c.Lookup("b")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	_, ok = c.Lookup("c")
	assert.False(t, ok)
}
