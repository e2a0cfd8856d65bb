package core

import (
	"context"
	"errors"
	"strings"

	"github.com/JonMunkholm/clodoo/internal/crypt"
	"github.com/JonMunkholm/clodoo/internal/logging"
	"github.com/JonMunkholm/clodoo/internal/macro"
)

// Evaluator resolves raw cell values: defaults for empty cells, decryption,
// aliases, macros and literals.
type Evaluator struct {
	env      *Env
	resolver *Resolver
	cipher   *crypt.Cipher
}

// NewEvaluator returns an evaluator. cipher may be nil, in which case
// encrypted values are left as they are.
func NewEvaluator(env *Env, resolver *Resolver, cipher *crypt.Cipher) *Evaluator {
	return &Evaluator{env: env, resolver: resolver, cipher: cipher}
}

// evalScope is what one evaluation knows about its target.
type evalScope struct {
	entity string
	field  string
	spec   *ImportSpec
	row    *Row
	vars   macro.Vars
}

// Evaluate resolves raw for field of the entity described by spec. row is
// the normalized row the value belongs to and may be nil. Resolution
// failures leave the value unresolved; only an ambiguous alias is
// reported as an error.
func (e *Evaluator) Evaluate(ctx context.Context, raw Value, field string, spec *ImportSpec, row *Row) (Value, error) {
	sc := evalScope{field: field, spec: spec, row: row, vars: e.env.Ambient}
	if spec != nil {
		sc.entity = spec.EntityFor(e.env.Ambient.SchemaVersion)
	}
	return e.evaluate(ctx, sc, raw)
}

// EvaluateField resolves raw for field of entity without defaults, as
// lookup keys are.
func (e *Evaluator) EvaluateField(ctx context.Context, entity, field string, raw Value) (Value, error) {
	return e.evaluate(ctx, evalScope{entity: entity, field: field, vars: e.env.Ambient}, raw)
}

// evaluateWith resolves raw against extra variables, as formulas do.
func (e *Evaluator) evaluateWith(ctx context.Context, vars macro.Vars, raw string, field string, spec *ImportSpec, row *Row) (Value, error) {
	sc := evalScope{field: field, spec: spec, row: row, vars: macro.Chain{vars, e.env.Ambient}}
	if spec != nil {
		sc.entity = spec.EntityFor(e.env.Ambient.SchemaVersion)
	}
	return e.evaluate(ctx, sc, raw)
}

func (e *Evaluator) evaluate(ctx context.Context, sc evalScope, raw Value) (Value, error) {
	s, ok := raw.(string)
	if !ok {
		return raw, nil
	}
	if s == "" {
		if sc.spec == nil {
			return s, nil
		}
		return e.env.fillValue(ctx, sc.entity, sc.field, s, sc.row), nil
	}

	if crypt.IsEncrypted(s) {
		plain, err := e.decrypt(s)
		if err != nil {
			logging.FromContext(ctx).Warn("value not decrypted", "field", sc.field, "error", err)
			return s, nil
		}
		s = plain
	}

	if v, ok, err := e.resolver.ResolveAlias(ctx, s); err != nil {
		return e.miss(ctx, sc, s, err)
	} else if ok {
		return v, nil
	}

	text := s
	if strings.HasPrefix(text, "=${") {
		text = text[1:]
	}
	tpl := macro.Parse(text)
	if !tpl.HasMacro() {
		return e.finish(ctx, sc, s, false)
	}
	v, err := e.expand(ctx, sc, tpl)
	if err != nil {
		return Absent, err
	}
	if str, ok := v.(string); ok {
		return e.finish(ctx, sc, str, true)
	}
	return v, nil
}

func (e *Evaluator) decrypt(s string) (string, error) {
	if e.cipher == nil {
		return "", crypt.ErrNoKey
	}
	return e.cipher.Decrypt(s)
}

// miss turns a resolution error into a value. Ambiguous aliases surface;
// anything else is logged and leaves fallback in place.
func (e *Evaluator) miss(ctx context.Context, sc evalScope, fallback Value, err error) (Value, error) {
	if errors.Is(err, ErrAmbiguousAlias) {
		return Absent, err
	}
	logging.FromContext(ctx).Warn("lookup failed", "entity", sc.entity, "field", sc.field, "error", err)
	return fallback, nil
}

// expand evaluates a template bottom-up and joins its fragments.
func (e *Evaluator) expand(ctx context.Context, sc evalScope, tpl macro.Template) (Value, error) {
	var acc Value = ""
	for _, n := range tpl {
		switch n := n.(type) {
		case macro.Text:
			acc = Concat(acc, string(n))
		case *macro.Macro:
			v, err := e.macroValue(ctx, sc, n)
			if err != nil {
				return Absent, err
			}
			acc = Concat(acc, v)
		}
	}
	return acc, nil
}

// macroValue evaluates one macro after expanding the macros in its body.
func (e *Evaluator) macroValue(ctx context.Context, sc evalScope, m *macro.Macro) (Value, error) {
	body := m.Body.String()
	if m.Body.HasMacro() {
		inner, err := e.expand(ctx, sc, m.Body)
		if err != nil {
			return Absent, err
		}
		body = Stringify(inner)
	}
	return e.evalBody(ctx, sc, strings.TrimSpace(body))
}

// evalBody classifies a macro body: query, variable, alias, literal, or
// plain text.
func (e *Evaluator) evalBody(ctx context.Context, sc evalScope, body string) (Value, error) {
	if q, ok := ParseQueryExpr(body); ok {
		return e.query(ctx, sc, q)
	}
	if v, ok := sc.vars.Lookup(body); ok {
		return v, nil
	}
	if _, isAlias := parseAlias(body); isAlias {
		v, ok, err := e.resolver.ResolveAlias(ctx, body)
		if err != nil {
			return e.miss(ctx, sc, Absent, err)
		}
		if !ok {
			logging.FromContext(ctx).Debug("alias not found", "alias", body, "field", sc.field)
			return Absent, nil
		}
		return v, nil
	}
	if lit, err := macro.ParseLiteral(body, sc.vars); err == nil {
		if lit == nil {
			return Absent, nil
		}
		return lit, nil
	}
	return body, nil
}

// query runs a query expression and returns the requested field of the
// first match, or Absent.
func (e *Evaluator) query(ctx context.Context, sc evalScope, q QueryExpr) (Value, error) {
	switch q.ReturnField {
	case returnDBType:
		if sc.spec == nil {
			return "", nil
		}
		return sc.spec.DBTypeSelector, nil
	case returnOEVersions:
		return strings.Join(q.Values, ",") == e.env.Ambient.SchemaVersion, nil
	}

	values := make([]Value, len(q.Params))
	for i, param := range q.Params {
		v, err := e.resolveParam(ctx, sc, q.Entity, param, q.value(i))
		if err != nil {
			return Absent, err
		}
		values[i] = v
	}

	ids, err := e.resolver.ResolveIDs(ctx, q.Entity, q.Params, values, q.CompanyScoped)
	if err != nil {
		return e.miss(ctx, sc, Absent, err)
	}
	if len(ids) == 0 {
		logging.FromContext(ctx).Debug("query matched nothing", "entity", q.Entity, "field", sc.field)
		return Absent, nil
	}
	if q.ReturnField == "id" {
		return ids[0], nil
	}
	recs, err := e.env.Store.Read(ctx, q.Entity, ids[:1], q.ReturnField)
	if err != nil {
		return e.miss(ctx, sc, Absent, err)
	}
	if len(recs) == 0 {
		return Absent, nil
	}
	if v, ok := recs[0][q.ReturnField]; ok && v != nil {
		return v, nil
	}
	return Absent, nil
}

// resolveParam evaluates a query value as a value of field in entity.
func (e *Evaluator) resolveParam(ctx context.Context, sc evalScope, entity, field, raw string) (Value, error) {
	inner := evalScope{entity: entity, field: field, row: sc.row, vars: sc.vars}
	return e.evaluate(ctx, inner, raw)
}

// finish applies the steps that follow macro expansion: list literals
// with alias items, reserved literals and numeric conversion.
func (e *Evaluator) finish(ctx context.Context, sc evalScope, s string, checkAlias bool) (Value, error) {
	if checkAlias {
		if v, ok, err := e.resolver.ResolveAlias(ctx, s); err != nil {
			return e.miss(ctx, sc, s, err)
		} else if ok {
			return v, nil
		}
	}
	if strings.HasPrefix(s, "[(") && strings.HasSuffix(s, ")]") {
		resolved, err := e.resolveListItems(ctx, sc, s)
		if err != nil {
			return Absent, err
		}
		s = resolved
	}
	if macro.IsReserved(s) {
		lit, err := macro.ParseLiteral(s, sc.vars)
		if err == nil {
			if lit == nil {
				return Absent, nil
			}
			return lit, nil
		}
		logging.FromContext(ctx).Debug("literal kept as text", "field", sc.field, "error", err)
	}
	if sc.entity != "" {
		if f, ok := e.env.Schema.Field(ctx, sc.entity, sc.field); ok {
			if v, ok := convertField(f.Type, s); ok {
				return v, nil
			}
		}
	}
	return s, nil
}

// resolveListItems replaces alias items of "[(a,b,...)]" with their ids.
func (e *Evaluator) resolveListItems(ctx context.Context, sc evalScope, s string) (string, error) {
	items := strings.Split(s[2:len(s)-2], ",")
	for i, item := range items {
		ref := strings.TrimSpace(item)
		v, ok, err := e.resolver.ResolveAlias(ctx, ref)
		if err != nil {
			if _, err := e.miss(ctx, sc, nil, err); err != nil {
				return "", err
			}
			continue
		}
		if ok {
			items[i] = Stringify(v)
		}
	}
	return "[(" + strings.Join(items, ",") + ")]", nil
}
