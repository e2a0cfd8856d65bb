package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/clodoo/internal/logging"
	"github.com/JonMunkholm/clodoo/internal/store"
)

// ErrAmbiguousAlias is returned when more than one alias row carries the
// same module and name.
var ErrAmbiguousAlias = errors.New("ambiguous alias")

// Resolver turns symbolic references into record ids.
type Resolver struct {
	env        *Env
	translator *Translator
}

// NewResolver returns a resolver over env.
func NewResolver(env *Env, tr *Translator) *Resolver {
	return &Resolver{env: env, translator: tr}
}

// aliasRef is a parsed "module.name" or "module.name.version" reference.
type aliasRef struct {
	Module  string
	Name    string
	Version string
}

// parseAlias recognizes alias references. Each part is an identifier; the
// first starts with a letter and a third part, when present, starts with a
// digit.
func parseAlias(v string) (aliasRef, bool) {
	parts := strings.Split(v, ".")
	for _, p := range parts {
		if !isIdentifier(p) {
			return aliasRef{}, false
		}
	}
	if !isLetter(parts[0][0]) {
		return aliasRef{}, false
	}
	switch len(parts) {
	case 2:
		return aliasRef{Module: parts[0], Name: parts[1]}, true
	case 3:
		if parts[2][0] >= '0' && parts[2][0] <= '9' {
			return aliasRef{Module: parts[0], Name: parts[1], Version: parts[2]}, true
		}
	}
	return aliasRef{}, false
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isLetter(c) && (c < '0' || c > '9') && c != '_' {
			return false
		}
	}
	return true
}

// ResolveAlias resolves ref through the alias table, or through the
// version symbol table for three-part references. ok is false when ref is
// not an alias or names nothing.
func (r *Resolver) ResolveAlias(ctx context.Context, ref string) (v Value, ok bool, err error) {
	a, isAlias := parseAlias(ref)
	if !isAlias {
		return nil, false, nil
	}
	if a.Version != "" {
		sym, found := r.translator.Symbol(a.Module, a.Name, a.Version)
		if !found {
			return nil, false, nil
		}
		return sym, true, nil
	}
	ids, err := r.ResolveIDs(ctx, store.AliasModel,
		[]string{"module", "name"}, []Value{a.Module, a.Name}, false)
	if err != nil || len(ids) == 0 {
		return nil, false, err
	}
	return ids[0], true, nil
}

// ResolveIDs searches entity for records whose fields hold values. An
// exact search runs first; only when it finds nothing, and entity is not
// the alias or user table, a case-insensitive partial search follows.
// Alias table hits are replaced by the record they point at.
func (r *Resolver) ResolveIDs(ctx context.Context, entity string, fields []string, values []Value, companyScoped bool) ([]int64, error) {
	amb := r.env.Ambient
	key := lookupKey(entity, fields, values, companyScoped)
	if ids, ok := amb.cachedLookup(key); ok {
		return ids, nil
	}

	exact, emitted, fuzzy := r.domain(ctx, entity, fields, values, companyScoped, "=")
	if !emitted {
		return nil, nil
	}
	ids, err := r.env.Store.Search(ctx, entity, exact, "")
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", entity, err)
	}

	if entity == store.AliasModel {
		ids, err = r.aliasTargets(ctx, ids, values)
		if err != nil {
			return nil, err
		}
	} else if len(ids) == 0 && fuzzy && entity != "res.users" {
		partial, _, _ := r.domain(ctx, entity, fields, values, companyScoped, "ilike")
		ids, err = r.env.Store.Search(ctx, entity, partial, "")
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", entity, err)
		}
	}

	amb.rememberLookup(key, ids)
	return ids, nil
}

// aliasTargets reads res_id off a single alias hit.
func (r *Resolver) aliasTargets(ctx context.Context, ids []int64, values []Value) ([]int64, error) {
	switch len(ids) {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, fmt.Errorf("%v: %d rows: %w", values, len(ids), ErrAmbiguousAlias)
	}
	recs, err := r.env.Store.Read(ctx, store.AliasModel, ids, "res_id")
	if err != nil {
		return nil, fmt.Errorf("read alias: %w", err)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	resID, ok := store.AsID(recs[0]["res_id"])
	if !ok || resID == 0 {
		return nil, nil
	}
	return []int64{resID}, nil
}

// domain builds the search domain. emitted reports whether any field term
// was produced; fuzzy whether any term would change under ilike.
func (r *Resolver) domain(ctx context.Context, entity string, fields []string, values []Value, companyScoped bool, op string) (d store.Domain, emitted, fuzzy bool) {
	amb := r.env.Ambient
	if companyScoped && amb.CompanyID != 0 && entity != store.AliasModel &&
		r.env.Schema.HasField(ctx, entity, "company_id") {
		d = append(d, store.Eq("company_id", amb.CompanyID))
	}
	for i, field := range fields {
		var v Value = ""
		if i < len(values) {
			v = values[i]
		}
		before := len(d)
		var textual bool
		d, textual = r.appendTerm(d, field, v, op)
		emitted = emitted || len(d) > before
		fuzzy = fuzzy || textual
	}
	return d, emitted, fuzzy
}

// appendTerm adds the constraint for one field. textual reports whether the
// term compares text and so may be relaxed to ilike.
func (r *Resolver) appendTerm(d store.Domain, field string, v Value, op string) (store.Domain, bool) {
	if isBlank(v) {
		switch {
		case field == "country_id":
			return append(d, store.Eq(field, idOrFalse(r.env.Ambient.DefaultCountryID))), false
		case field != "id" && strings.HasSuffix(field, "_id"):
			return append(d, store.Eq(field, false)), false
		}
		return d, false
	}
	s, isText := v.(string)
	if !isText {
		return append(d, store.Eq(field, v)), false
	}
	if strings.HasPrefix(s, "~") {
		return append(d, store.Or,
			store.Term{Field: field, Op: op, Value: s},
			store.Term{Field: field, Op: op, Value: s[1:]}), true
	}
	return append(d, store.Term{Field: field, Op: op, Value: s}), true
}

// RegisterAlias records ref as the alias of entity record id, updating the
// alias row when (module, name) already exists.
func (r *Resolver) RegisterAlias(ctx context.Context, entity, ref string, id int64) error {
	module, name, ok := strings.Cut(ref, ".")
	if !ok {
		module, name = r.env.Ambient.AliasModule, ref
	}
	if module == "" {
		module = "base"
	}
	if entity == "" || name == "" || id == 0 {
		return fmt.Errorf("invalid alias ref %q", ref)
	}

	st := r.env.Store
	ids, err := st.Search(ctx, store.AliasModel,
		store.Domain{store.Eq("module", module), store.Eq("name", name)}, "")
	if err != nil {
		return fmt.Errorf("search alias: %w", err)
	}
	if len(ids) > 0 {
		if err := st.Write(ctx, store.AliasModel, ids, map[string]any{"model": entity, "res_id": id}); err != nil {
			return fmt.Errorf("update alias %s.%s: %w", module, name, err)
		}
	} else {
		vals := map[string]any{"module": module, "model": entity, "name": name, "res_id": id}
		if _, err := st.Create(ctx, store.AliasModel, vals); err != nil {
			return fmt.Errorf("create alias %s.%s: %w", module, name, err)
		}
	}
	r.env.Ambient.resetLookups()
	logging.FromContext(ctx).Debug("alias registered", "alias", module+"."+name, "entity", entity, "id", id)
	return nil
}
