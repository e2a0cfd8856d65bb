package core

import (
	"context"
	"testing"

	"github.com/JonMunkholm/clodoo/internal/config"
	"github.com/JonMunkholm/clodoo/internal/store"
)

// Fixed ids of the seeded store.
const (
	italyID    = int64(1)
	franceID   = int64(2)
	companyXID = int64(1)
	companyYID = int64(2)
)

// newTestStore returns a store with partner, company and country schemas,
// two countries and two companies.
func newTestStore() *store.Memory {
	m := store.NewMemory()
	m.DefineModel("res.partner",
		store.FieldDef{Name: "name", Required: true},
		store.FieldDef{Name: "ref"},
		store.FieldDef{Name: "vat"},
		store.FieldDef{Name: "email"},
		store.FieldDef{Name: "city"},
		store.FieldDef{Name: "street"},
		store.FieldDef{Name: "street2"},
		store.FieldDef{Name: "display_name"},
		store.FieldDef{Name: "customer", Type: "boolean"},
		store.FieldDef{Name: "supplier", Type: "boolean"},
		store.FieldDef{Name: "is_company", Type: "boolean"},
		store.FieldDef{Name: "credit_limit", Type: "float"},
		store.FieldDef{Name: "company_id", Type: "many2one", Relation: "res.company"},
		store.FieldDef{Name: "country_id", Type: "many2one", Relation: "res.country"},
		store.FieldDef{Name: "parent_id", Type: "many2one", Relation: "res.partner"},
	)
	m.DefineModel("res.company",
		store.FieldDef{Name: "name", Required: true},
		store.FieldDef{Name: "zip"},
		store.FieldDef{Name: "country_id", Type: "many2one", Relation: "res.country"},
	)
	m.DefineModel("res.country",
		store.FieldDef{Name: "name", Required: true},
		store.FieldDef{Name: "code"},
	)
	m.DefineModel("res.users",
		store.FieldDef{Name: "name", Required: true},
		store.FieldDef{Name: "login", Required: true},
		store.FieldDef{Name: "email"},
	)

	m.Put("res.country", italyID, map[string]any{"name": "Italy", "code": "IT"})
	m.Put("res.country", franceID, map[string]any{"name": "France", "code": "FR"})
	m.Put("res.company", companyXID, map[string]any{"name": "CompanyX", "zip": "20100", "country_id": italyID})
	m.Put("res.company", companyYID, map[string]any{"name": "CompanyY", "zip": "75001", "country_id": franceID})
	return m
}

// testEnv wires the per-run components over st the way a run does.
type testEnv struct {
	env  *Env
	amb  *AmbientContext
	tr   *Translator
	res  *Resolver
	eval *Evaluator
	norm *Normalizer
}

func newTestEnv(st store.Store, amb *AmbientContext, cat *config.Catalog) *testEnv {
	if amb == nil {
		amb = &AmbientContext{}
	}
	if cat == nil {
		cat = &config.Catalog{}
	}
	env := &Env{Store: st, Ambient: amb, Schema: NewSchema(st), Catalog: cat}
	tr := NewTranslator(cat, amb.SchemaVersion)
	res := NewResolver(env, tr)
	ev := NewEvaluator(env, res, nil)
	return &testEnv{env: env, amb: amb, tr: tr, res: res, eval: ev, norm: NewNormalizer(env, tr, ev)}
}

func partnerSpec() *ImportSpec {
	return &ImportSpec{
		Entity:            "res.partner",
		KeyFields:         []string{"name"},
		DescriptionFields: []string{"name"},
	}
}

// searches returns the search calls st received on model.
func searches(st *store.Memory, model string) []store.Call {
	var out []store.Call
	for _, c := range st.Calls("search") {
		if c.Model == model {
			out = append(out, c)
		}
	}
	return out
}

// spyVars records every name looked up.
type spyVars struct {
	values   map[string]any
	onLookup func(name string)
}

func (s spyVars) Lookup(name string) (any, bool) {
	if s.onLookup != nil {
		s.onLookup(name)
	}
	v, ok := s.values[name]
	return v, ok
}

var bg = context.Background()

func requireNoCalls(t *testing.T, st *store.Memory, ops ...string) {
	t.Helper()
	if calls := st.Calls(ops...); len(calls) != 0 {
		t.Fatalf("unexpected %v calls: %+v", ops, calls)
	}
}
