// Package store defines the record store the importer talks to and an
// in-memory implementation of it.
//
// A store holds records grouped by entity (model) name. Records are
// addressed by positive integer ids and filtered with Odoo-style domains.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested id does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrUnknownModel is returned by stores that validate entity names.
	ErrUnknownModel = errors.New("unknown model")

	// ErrUnsupported is returned for operations a backend cannot perform.
	ErrUnsupported = errors.New("operation not supported")
)

// Entity names with a fixed meaning in every store.
const (
	AliasModel  = "ir.model.data"
	FieldsModel = "ir.model.fields"
)

// Store is the record store used by the importer.
type Store interface {
	Search(ctx context.Context, model string, domain Domain, order string) ([]int64, error)
	Read(ctx context.Context, model string, ids []int64, fields ...string) ([]Record, error)
	Create(ctx context.Context, model string, vals map[string]any) (int64, error)
	Write(ctx context.Context, model string, ids []int64, vals map[string]any) error
	Unlink(ctx context.Context, model string, ids []int64) error
	// Execute calls a model method such as "execute" on a settings wizard.
	Execute(ctx context.Context, model, method string, args ...any) (any, error)
}

// Browse reads a single record with all its fields.
func Browse(ctx context.Context, s Store, model string, id int64) (Record, error) {
	recs, err := s.Read(ctx, model, []int64{id})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%s(%d): %w", model, id, ErrNotFound)
	}
	return recs[0], nil
}

// Record is one stored record keyed by field name. Many-to-one fields hold
// the referenced id as int64.
type Record map[string]any

// ID returns the record id, or 0 when absent.
func (r Record) ID() int64 {
	id, _ := AsID(r["id"])
	return id
}

// AsID converts a numeric value into a record id.
func AsID(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

// ----------------------------------------------------------------------------
// Domains
// ----------------------------------------------------------------------------

// Logic is a prefix operator inside a domain.
type Logic string

const (
	Or  Logic = "|"
	And Logic = "&"
	Not Logic = "!"
)

// Term is a (field, operator, value) condition.
type Term struct {
	Field string
	Op    string
	Value any
}

// MarshalJSON encodes a term as the three element array used on the wire.
func (t Term) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{t.Field, t.Op, t.Value})
}

func (t Term) String() string {
	return fmt.Sprintf("(%s %s %v)", t.Field, t.Op, t.Value)
}

// Eq builds an equality term.
func Eq(field string, value any) Term {
	return Term{Field: field, Op: "=", Value: value}
}

// Domain is a filter in prefix notation. Elements are Term or Logic; terms
// not joined by an operator are implicitly AND-ed.
type Domain []any

// Validate checks that every operator has enough operands.
func (d Domain) Validate() error {
	for pos := 0; pos < len(d); {
		next, err := d.skip(pos)
		if err != nil {
			return err
		}
		pos = next
	}
	return nil
}

// Match evaluates the domain, calling match to decide each term.
func (d Domain) Match(match func(Term) bool) (bool, error) {
	result := true
	for pos := 0; pos < len(d); {
		ok, next, err := d.eval(pos, match)
		if err != nil {
			return false, err
		}
		result = result && ok
		pos = next
	}
	return result, nil
}

// skip returns the position after the expression starting at pos.
func (d Domain) skip(pos int) (int, error) {
	if pos >= len(d) {
		return 0, fmt.Errorf("domain: missing operand at %d", pos)
	}
	switch el := d[pos].(type) {
	case Term:
		return pos + 1, nil
	case Logic:
		next := pos + 1
		for range el.arity() {
			var err error
			if next, err = d.skip(next); err != nil {
				return 0, err
			}
		}
		return next, nil
	default:
		return 0, fmt.Errorf("domain: unexpected element %T at %d", el, pos)
	}
}

func (d Domain) eval(pos int, match func(Term) bool) (bool, int, error) {
	if pos >= len(d) {
		return false, 0, fmt.Errorf("domain: missing operand at %d", pos)
	}
	switch el := d[pos].(type) {
	case Term:
		return match(el), pos + 1, nil
	case Logic:
		left, next, err := d.eval(pos+1, match)
		if err != nil {
			return false, 0, err
		}
		if el == Not {
			return !left, next, nil
		}
		right, next, err := d.eval(next, match)
		if err != nil {
			return false, 0, err
		}
		if el == Or {
			return left || right, next, nil
		}
		return left && right, next, nil
	default:
		return false, 0, fmt.Errorf("domain: unexpected element %T at %d", el, pos)
	}
}

func (l Logic) arity() int {
	if l == Not {
		return 1
	}
	return 2
}
