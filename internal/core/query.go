package core

import (
	"strings"
)

// QueryExpr is a parsed "entity[field](params)::values" macro body.
type QueryExpr struct {
	Entity      string
	ReturnField string
	Params      []string
	Values      []string
	// CompanyScoped is set by the "::" separator.
	CompanyScoped bool
}

// Return fields answered without a store query.
const (
	returnDBType     = "db_type"
	returnOEVersions = "oe_versions"
)

// ParseQueryExpr splits a macro body into a query expression. The first
// "::" wins over ":"; the entity takes optional "[field]" and "(params)"
// suffixes in either order. Bodies whose head is not a dotted model name
// are not queries.
func ParseQueryExpr(body string) (QueryExpr, bool) {
	q := QueryExpr{ReturnField: "id", Params: []string{"name"}}

	sep := "::"
	i := strings.Index(body, sep)
	if i >= 0 {
		q.CompanyScoped = true
	} else {
		sep = ":"
		if i = strings.Index(body, sep); i < 0 {
			return QueryExpr{}, false
		}
	}
	head, raw := body[:i], body[i+len(sep):]

	end := 0
	for end < len(head) && isModelChar(head[end]) {
		end++
	}
	q.Entity = head[:end]
	if !isModelName(q.Entity) {
		return QueryExpr{}, false
	}

	rest := head[end:]
	for rest != "" {
		var closing byte
		switch rest[0] {
		case '[':
			closing = ']'
		case '(':
			closing = ')'
		default:
			return QueryExpr{}, false
		}
		j := strings.IndexByte(rest, closing)
		if j < 0 {
			return QueryExpr{}, false
		}
		inner := strings.TrimSpace(rest[1:j])
		if closing == ']' {
			if inner != "" {
				q.ReturnField = inner
			}
		} else if params := splitList(inner); len(params) > 0 {
			q.Params = params
		}
		rest = rest[j+1:]
	}

	if len(q.Params) > 1 {
		q.Values = strings.Split(raw, ",")
	} else {
		q.Values = []string{raw}
	}
	return q, true
}

func isModelChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_' || c == '.'
}

// isModelName accepts lower-case dotted names such as res.partner.
func isModelName(s string) bool {
	if s == "" || s[0] < 'a' || s[0] > 'z' || s[len(s)-1] == '.' {
		return false
	}
	if !strings.Contains(s, ".") || strings.Contains(s, "..") {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isModelChar(s[i]) {
			return false
		}
	}
	return true
}

// value returns the raw query value for the i-th parameter.
func (q QueryExpr) value(i int) string {
	if i < len(q.Values) {
		return strings.TrimSpace(q.Values[i])
	}
	return ""
}
