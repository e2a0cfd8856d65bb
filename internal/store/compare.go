package store

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// IsEmpty reports whether v is an unset field value. The store treats
// nil, false and "" alike, as Odoo does for unset columns.
func IsEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case bool:
		return !x
	case string:
		return x == ""
	}
	return false
}

// Equal reports whether two field values hold the same data. Go numbers
// compare numerically whatever their type. As soon as one side is text
// the comparison is textual, so "00100" differs from "100".
func Equal(a, b any) bool {
	if IsEmpty(a) || IsEmpty(b) {
		return IsEmpty(a) && IsEmpty(b)
	}
	if fa, ok := asNumber(a); ok {
		if fb, ok := asNumber(b); ok {
			return fa == fb
		}
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return ba == bb
		}
	}
	return norm.NFC.String(fmt.Sprint(a)) == norm.NFC.String(fmt.Sprint(b))
}

// Compare orders two values: numbers numerically, everything else as text.
func Compare(a, b any) int {
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// asNumber converts Go numeric types. Strings are not numbers here.
func asNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	}
	return 0, false
}

// asFloat is asNumber plus numeric strings, for ordering.
func asFloat(v any) (float64, bool) {
	if f, ok := asNumber(v); ok {
		return f, true
	}
	if x, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

// Like matches text against an SQL LIKE pattern ('%' and '_' wildcards).
func Like(text, pattern string, fold bool) bool {
	if fold {
		text = folder.String(norm.NFC.String(text))
		pattern = folder.String(norm.NFC.String(pattern))
	}
	var expr strings.Builder
	expr.WriteString("(?s)^")
	for _, r := range pattern {
		switch r {
		case '%':
			expr.WriteString(".*")
		case '_':
			expr.WriteString(".")
		default:
			expr.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	expr.WriteString("$")
	re, err := regexp.Compile(expr.String())
	if err != nil {
		return false
	}
	return re.MatchString(text)
}

// MatchTerm evaluates a single term against a field value.
func MatchTerm(t Term, value any) bool {
	switch t.Op {
	case "=", "==":
		return Equal(value, t.Value)
	case "!=", "<>":
		return !Equal(value, t.Value)
	case "ilike", "like", "=ilike", "=like", "not ilike", "not like":
		if IsEmpty(value) {
			return strings.HasPrefix(t.Op, "not")
		}
		pattern := fmt.Sprint(t.Value)
		op := strings.TrimPrefix(t.Op, "not ")
		if !strings.HasPrefix(op, "=") {
			pattern = "%" + pattern + "%"
		}
		ok := Like(fmt.Sprint(value), pattern, strings.HasSuffix(op, "ilike"))
		if strings.HasPrefix(t.Op, "not") {
			return !ok
		}
		return ok
	case "in", "not in":
		found := false
		for _, item := range asList(t.Value) {
			if Equal(value, item) {
				found = true
				break
			}
		}
		return found == (t.Op == "in")
	case "<":
		return !IsEmpty(value) && Compare(value, t.Value) < 0
	case ">":
		return !IsEmpty(value) && Compare(value, t.Value) > 0
	case "<=":
		return !IsEmpty(value) && Compare(value, t.Value) <= 0
	case ">=":
		return !IsEmpty(value) && Compare(value, t.Value) >= 0
	}
	return false
}

func asList(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case []int64:
		out := make([]any, len(x))
		for i, id := range x {
			out[i] = id
		}
		return out
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	}
	return []any{v}
}
