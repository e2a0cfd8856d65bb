package core

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/JonMunkholm/clodoo/internal/macro"
	"github.com/JonMunkholm/clodoo/internal/store"
)

// Concat joins the value accumulated so far with the next fragment of a
// template. Text absorbs scalars once it is non-empty; two scalars are
// joined as text; anything appended to an empty accumulator replaces it.
//
//	acc \ next         text        scalar      empty/absent/list
//	non-empty text     acc+next    acc+str     acc
//	scalar             str+next    str+str     acc
//	empty/absent/list  next        next        next
func Concat(acc, next Value) Value {
	switch a := acc.(type) {
	case string:
		if a == "" {
			return next
		}
		switch n := next.(type) {
		case string:
			return a + n
		default:
			if isScalar(n) {
				return a + Stringify(n)
			}
		}
		return acc
	default:
		if !isScalar(a) {
			return next
		}
		if n, ok := next.(string); ok && n != "" {
			return Stringify(a) + n
		}
		if isScalar(next) {
			return Stringify(a) + Stringify(next)
		}
		return acc
	}
}

func isScalar(v Value) bool {
	switch v.(type) {
	case bool, int, int64, float64:
		return true
	}
	return false
}

// Stringify renders a value the way it is spliced into text: booleans as
// True/False, floats in their shortest form and absent values as "".
func Stringify(v Value) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		if x {
			return "True"
		}
		return "False"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	if IsAbsent(v) {
		return ""
	}
	return fmt.Sprint(v)
}

// isDigits reports whether s is a non-empty run of ASCII digits.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// toNumber converts a digit string for a field of type typ.
func toNumber(s, typ string) (Value, bool) {
	if typ == "float" || typ == "monetary" {
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}

// splitList splits a comma separated list, trimming blanks.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// sameValue reports whether writing v would leave cur unchanged. A
// "[(6, 0, ids)]" command equals a stored id list holding the same ids,
// in any order.
func sameValue(v Value, cur any) bool {
	ids, ok := replaceCommandIDs(v)
	if !ok {
		return store.Equal(v, cur)
	}
	stored, ok := idList(cur)
	if !ok {
		return false
	}
	slices.Sort(ids)
	slices.Sort(stored)
	return slices.Equal(ids, stored)
}

// replaceCommandIDs returns the ids of a single (6, 0, ids) command.
func replaceCommandIDs(v Value) ([]int64, bool) {
	list, ok := v.([]any)
	if !ok || len(list) != 1 {
		return nil, false
	}
	cmd, ok := list[0].(macro.Tuple)
	if !ok || len(cmd) != 3 {
		return nil, false
	}
	if op, ok := store.AsID(cmd[0]); !ok || op != 6 {
		return nil, false
	}
	return idList(cmd[2])
}

// idList reads a list of ids. An unset value is the empty list.
func idList(v any) ([]int64, bool) {
	if store.IsEmpty(v) {
		return []int64{}, true
	}
	switch x := v.(type) {
	case []int64:
		return slices.Clone(x), true
	case []any:
		ids := make([]int64, 0, len(x))
		for _, item := range x {
			id, ok := store.AsID(item)
			if !ok {
				return nil, false
			}
			ids = append(ids, id)
		}
		return ids, true
	}
	return nil, false
}
