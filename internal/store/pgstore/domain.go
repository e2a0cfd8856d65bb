package pgstore

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/clodoo/internal/store"
)

// Compile renders a domain as a boolean SQL expression. Placeholders are
// numbered from offset+1 and the matching arguments are returned.
func Compile(d store.Domain, offset int) (string, []any, error) {
	c := compiler{domain: d, offset: offset}
	if err := d.Validate(); err != nil {
		return "", nil, err
	}
	var parts []string
	for c.pos < len(d) {
		expr, err := c.expr()
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, expr)
	}
	if len(parts) == 0 {
		return "TRUE", nil, nil
	}
	return strings.Join(parts, " AND "), c.args, nil
}

type compiler struct {
	domain store.Domain
	pos    int
	offset int
	args   []any
}

func (c *compiler) placeholder(v any) string {
	c.args = append(c.args, v)
	return fmt.Sprintf("$%d", c.offset+len(c.args))
}

func (c *compiler) expr() (string, error) {
	el := c.domain[c.pos]
	c.pos++
	switch x := el.(type) {
	case store.Term:
		return c.term(x)
	case store.Logic:
		left, err := c.expr()
		if err != nil {
			return "", err
		}
		if x == store.Not {
			return "NOT (" + left + ")", nil
		}
		right, err := c.expr()
		if err != nil {
			return "", err
		}
		op := " AND "
		if x == store.Or {
			op = " OR "
		}
		return "(" + left + op + right + ")", nil
	}
	return "", fmt.Errorf("domain: unexpected element %T", el)
}

func (c *compiler) term(t store.Term) (string, error) {
	col := column(t.Field)
	switch t.Op {
	case "=", "==":
		if store.IsEmpty(t.Value) && t.Value != "" {
			return col + " IS NULL", nil
		}
		return col + " = " + c.placeholder(t.Value), nil
	case "!=", "<>":
		if store.IsEmpty(t.Value) && t.Value != "" {
			return col + " IS NOT NULL", nil
		}
		return col + " IS DISTINCT FROM " + c.placeholder(t.Value), nil
	case "like", "ilike", "=like", "=ilike", "not like", "not ilike":
		op := strings.TrimPrefix(t.Op, "not ")
		pattern := fmt.Sprint(t.Value)
		if !strings.HasPrefix(op, "=") {
			pattern = "%" + pattern + "%"
		}
		sqlOp := " LIKE "
		if strings.HasSuffix(op, "ilike") {
			sqlOp = " ILIKE "
		}
		expr := col + "::text" + sqlOp + c.placeholder(pattern)
		if strings.HasPrefix(t.Op, "not") {
			return "NOT (" + expr + ")", nil
		}
		return expr, nil
	case "in":
		return col + " = ANY(" + c.placeholder(t.Value) + ")", nil
	case "not in":
		return "NOT (" + col + " = ANY(" + c.placeholder(t.Value) + "))", nil
	case "<", ">", "<=", ">=":
		return col + " " + t.Op + " " + c.placeholder(t.Value), nil
	}
	return "", fmt.Errorf("domain: unsupported operator %q", t.Op)
}

// compileOrder validates an order clause such as "name, id desc".
func compileOrder(order string) (string, error) {
	if strings.TrimSpace(order) == "" {
		return column("id"), nil
	}
	var parts []string
	for _, item := range strings.Split(order, ",") {
		fields := strings.Fields(item)
		if len(fields) == 0 || len(fields) > 2 {
			return "", fmt.Errorf("invalid order %q", order)
		}
		part := column(fields[0])
		if len(fields) == 2 {
			switch strings.ToLower(fields[1]) {
			case "asc":
				part += " ASC"
			case "desc":
				part += " DESC"
			default:
				return "", fmt.Errorf("invalid order %q", order)
			}
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ", "), nil
}
