package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/JonMunkholm/clodoo/internal/config"
	"github.com/JonMunkholm/clodoo/internal/logging"
	"github.com/JonMunkholm/clodoo/internal/macro"
	"github.com/JonMunkholm/clodoo/internal/store"
)

// Env bundles what providers and the evaluator need for one run.
type Env struct {
	Store   store.Store
	Ambient *AmbientContext
	Schema  *Schema
	Catalog *config.Catalog
}

// CountryID resolves a country given as "base.XX", an ISO code or a name.
// An empty value yields the default country; an unknown one yields false.
func (e *Env) CountryID(ctx context.Context, value string) Value {
	value = strings.TrimSpace(value)
	if value == "" {
		return idOrFalse(e.Ambient.DefaultCountryID)
	}
	code := strings.ToUpper(strings.TrimPrefix(value, "base."))
	ids := e.search(ctx, "res.country", store.Domain{store.Eq("code", code)})
	if len(ids) == 0 && !strings.HasPrefix(value, "base.") {
		ids = e.search(ctx, "res.country", store.Domain{store.Term{Field: "name", Op: "ilike", Value: value}})
	}
	if len(ids) == 0 {
		return false
	}
	return ids[0]
}

// StateID resolves a state code or name within country. A missing country
// means the default country.
func (e *Env) StateID(ctx context.Context, value string, country Value) Value {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	countryID, ok := store.AsID(country)
	if !ok || countryID == 0 {
		countryID = e.Ambient.DefaultCountryID
	}
	scope := store.Eq("country_id", idOrFalse(countryID))
	ids := e.search(ctx, "res.country.state", store.Domain{scope, store.Eq("code", strings.ToUpper(value))})
	if len(ids) == 0 {
		ids = e.search(ctx, "res.country.state", store.Domain{scope, store.Term{Field: "name", Op: "ilike", Value: value}})
	}
	if len(ids) == 0 {
		return false
	}
	return ids[0]
}

// CountryCode returns the ISO code of a country given as id or code, or
// the ambient country code when it cannot be told.
func (e *Env) CountryCode(ctx context.Context, country Value) string {
	switch c := country.(type) {
	case string:
		if c != "" && !isDigits(c) {
			return strings.ToUpper(strings.TrimPrefix(c, "base."))
		}
	default:
		if id, ok := store.AsID(c); ok && id > 0 {
			rec, err := store.Browse(ctx, e.Store, "res.country", id)
			if err == nil {
				if code, _ := rec["code"].(string); code != "" {
					return strings.ToUpper(code)
				}
			}
		}
	}
	return e.Ambient.CountryCode
}

func (e *Env) search(ctx context.Context, entity string, d store.Domain) []int64 {
	ids, err := e.Store.Search(ctx, entity, d, "")
	if err != nil {
		logging.FromContext(ctx).Warn("lookup failed", "entity", entity, "domain", fmt.Sprint(d), "error", err)
		return nil
	}
	return ids
}

// fillValue settles one field value before evaluation: catalogue default
// for empty values, ambient company, country lookup, then the entity's
// provider.
func (e *Env) fillValue(ctx context.Context, entity, field string, v Value, row *Row) Value {
	if isBlank(v) {
		if d, ok := e.Catalog.Default(field); ok {
			return d
		}
	}
	switch field {
	case "company_id":
		if store.IsEmpty(v) || IsAbsent(v) {
			return idOrFalse(e.Ambient.CompanyID)
		}
		return v
	case "country_id":
		s, ok := v.(string)
		if !ok || macro.Contains(s) {
			return v
		}
		return e.CountryID(ctx, s)
	}
	p := ProviderFor(entity)
	if isBlank(v) {
		if nv, ok := p.NullValue(ctx, e, field, row); ok {
			return nv
		}
	}
	return p.DefaultValue(ctx, e, field, v, row)
}

// ----------------------------------------------------------------------------
// Providers
// ----------------------------------------------------------------------------

// Provider supplies entity specific defaults.
type Provider interface {
	// DefaultFields lists the fields every row of the entity should carry.
	DefaultFields(ctx context.Context, env *Env, entity string) []string

	// DefaultValue may adjust a field value during normalization.
	DefaultValue(ctx context.Context, env *Env, field string, v Value, row *Row) Value

	// NullValue fills a field the row left empty.
	NullValue(ctx context.Context, env *Env, field string, row *Row) (Value, bool)
}

// GenericProvider reads mandatory fields from the schema and changes no
// values. Entity providers embed it and override what they need.
type GenericProvider struct{}

func (GenericProvider) DefaultFields(ctx context.Context, env *Env, entity string) []string {
	return env.Schema.MandatoryFields(ctx, entity)
}

func (GenericProvider) DefaultValue(_ context.Context, _ *Env, _ string, v Value, _ *Row) Value {
	return v
}

func (GenericProvider) NullValue(context.Context, *Env, string, *Row) (Value, bool) {
	return nil, false
}

var (
	providers   = make(map[string]Provider)
	providersMu sync.RWMutex
)

// RegisterProvider binds a provider to an entity.
// Panics if the entity already has one.
func RegisterProvider(entity string, p Provider) {
	providersMu.Lock()
	defer providersMu.Unlock()

	if _, exists := providers[entity]; exists {
		panic(fmt.Sprintf("provider already registered: %s", entity))
	}
	providers[entity] = p
}

// ProviderFor returns the provider of entity, or the generic one.
func ProviderFor(entity string) Provider {
	providersMu.RLock()
	defer providersMu.RUnlock()

	if p, ok := providers[entity]; ok {
		return p
	}
	return GenericProvider{}
}

// Providers returns the entities with a registered provider, sorted.
func Providers() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()

	result := make([]string, 0, len(providers))
	for entity := range providers {
		result = append(result, entity)
	}
	sort.Strings(result)
	return result
}
