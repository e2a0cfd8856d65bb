package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/clodoo/internal/config"
	"github.com/JonMunkholm/clodoo/internal/store"
)

func TestParseAlias(t *testing.T) {
	tests := []struct {
		in   string
		want aliasRef
		ok   bool
	}{
		{"base.IT", aliasRef{Module: "base", Name: "IT"}, true},
		{"demo.partner_1", aliasRef{Module: "demo", Name: "partner_1"}, true},
		{"account.tax_22.12", aliasRef{Module: "account", Name: "tax_22", Version: "12"}, true},
		{"account.tax_22.x", aliasRef{}, false},
		{"3.14", aliasRef{}, false},
		{"Odoo SA", aliasRef{}, false},
		{"info@example.com", aliasRef{}, false},
		{"base.", aliasRef{}, false},
		{"plain", aliasRef{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseAlias(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveIDs_ExactHitSkipsFuzzy(t *testing.T) {
	st := newTestStore()
	id := st.Put("res.partner", 0, map[string]any{"name": "Odoo SA"})
	te := newTestEnv(st, nil, nil)

	ids, err := te.res.ResolveIDs(bg, "res.partner", []string{"name"}, []Value{"Odoo SA"}, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{id}, ids)

	calls := searches(st, "res.partner")
	require.Len(t, calls, 1)
	assert.Equal(t, store.Domain{store.Eq("name", "Odoo SA")}, calls[0].Domain)
}

func TestResolveIDs_FuzzyFallback(t *testing.T) {
	st := newTestStore()
	id := st.Put("res.partner", 0, map[string]any{"name": "Odoo SA"})
	te := newTestEnv(st, nil, nil)

	ids, err := te.res.ResolveIDs(bg, "res.partner", []string{"name"}, []Value{"odoo"}, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{id}, ids)

	calls := searches(st, "res.partner")
	require.Len(t, calls, 2)
	assert.Equal(t, store.Domain{store.Term{Field: "name", Op: "ilike", Value: "odoo"}}, calls[1].Domain)
}

func TestResolveIDs_NoFuzzyForUsers(t *testing.T) {
	st := newTestStore()
	st.Put("res.users", 0, map[string]any{"name": "Administrator", "login": "admin"})
	te := newTestEnv(st, nil, nil)

	ids, err := te.res.ResolveIDs(bg, "res.users", []string{"login"}, []Value{"adm"}, false)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Len(t, searches(st, "res.users"), 1)
}

func TestResolveIDs_NoFuzzyForNumbers(t *testing.T) {
	st := newTestStore()
	te := newTestEnv(st, nil, nil)

	ids, err := te.res.ResolveIDs(bg, "res.partner", []string{"parent_id"}, []Value{int64(4)}, false)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Len(t, searches(st, "res.partner"), 1)
}

func TestResolveIDs_CompanyScope(t *testing.T) {
	st := newTestStore()
	st.Put("res.partner", 0, map[string]any{"name": "Odoo SA", "company_id": companyYID})
	mine := st.Put("res.partner", 0, map[string]any{"name": "Odoo SA", "company_id": companyXID})
	te := newTestEnv(st, &AmbientContext{CompanyID: companyXID}, nil)

	ids, err := te.res.ResolveIDs(bg, "res.partner", []string{"name"}, []Value{"Odoo SA"}, true)
	require.NoError(t, err)
	assert.Equal(t, []int64{mine}, ids)

	calls := searches(st, "res.partner")
	require.NotEmpty(t, calls)
	assert.Equal(t, store.Eq("company_id", companyXID), calls[0].Domain[0])
}

func TestResolveIDs_BlankValues(t *testing.T) {
	st := newTestStore()
	te := newTestEnv(st, &AmbientContext{DefaultCountryID: italyID}, nil)

	d, emitted, fuzzy := te.res.domain(bg, "res.partner",
		[]string{"parent_id", "country_id", "name", "ref"},
		[]Value{"", "", "Alpha", Absent}, false, "=")
	assert.True(t, emitted)
	assert.True(t, fuzzy)
	assert.Equal(t, store.Domain{
		store.Eq("parent_id", false),
		store.Eq("country_id", italyID),
		store.Eq("name", "Alpha"),
	}, d)
}

func TestResolveIDs_NothingToSearch(t *testing.T) {
	st := newTestStore()
	te := newTestEnv(st, nil, nil)

	ids, err := te.res.ResolveIDs(bg, "res.partner", []string{"name"}, []Value{""}, false)
	require.NoError(t, err)
	assert.Nil(t, ids)
	assert.Empty(t, searches(st, "res.partner"))
}

func TestResolveIDs_TildeMatchesBothSpellings(t *testing.T) {
	st := newTestStore()
	id := st.Put("res.partner", 0, map[string]any{"name": "Odoo SA"})
	te := newTestEnv(st, nil, nil)

	ids, err := te.res.ResolveIDs(bg, "res.partner", []string{"name"}, []Value{"~Odoo SA"}, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{id}, ids)
}

func TestResolveIDs_CachedWithinRow(t *testing.T) {
	st := newTestStore()
	st.Put("res.partner", 0, map[string]any{"name": "Odoo SA"})
	te := newTestEnv(st, nil, nil)

	for range 3 {
		_, err := te.res.ResolveIDs(bg, "res.partner", []string{"name"}, []Value{"Odoo SA"}, false)
		require.NoError(t, err)
	}
	assert.Len(t, searches(st, "res.partner"), 1)

	te.amb.resetLookups()
	_, err := te.res.ResolveIDs(bg, "res.partner", []string{"name"}, []Value{"Odoo SA"}, false)
	require.NoError(t, err)
	assert.Len(t, searches(st, "res.partner"), 2)
}

func TestResolveAlias(t *testing.T) {
	st := newTestStore()
	st.Put(store.AliasModel, 0, map[string]any{"module": "demo", "name": "p1", "model": "res.partner", "res_id": int64(7)})
	te := newTestEnv(st, nil, nil)

	v, ok, err := te.res.ResolveAlias(bg, "demo.p1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), v)

	_, ok, err = te.res.ResolveAlias(bg, "demo.missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = te.res.ResolveAlias(bg, "not an alias")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveAlias_Ambiguous(t *testing.T) {
	st := newTestStore()
	st.Put(store.AliasModel, 0, map[string]any{"module": "demo", "name": "dup", "res_id": int64(7)})
	st.Put(store.AliasModel, 0, map[string]any{"module": "demo", "name": "dup", "res_id": int64(8)})
	te := newTestEnv(st, nil, nil)

	_, _, err := te.res.ResolveAlias(bg, "demo.dup")
	assert.ErrorIs(t, err, ErrAmbiguousAlias)
}

func TestResolveAlias_Symbol(t *testing.T) {
	cat := &config.Catalog{
		Symbols: map[string]map[string]map[string]string{
			"account": {"tax_22": {"12.0": "22v INC"}},
		},
	}
	st := newTestStore()
	te := newTestEnv(st, &AmbientContext{SchemaVersion: "12.0"}, cat)

	v, ok, err := te.res.ResolveAlias(bg, "account.tax_22.12")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "22v INC", v)
	requireNoCalls(t, st, "search")

	// The alias names its version, whatever the store runs.
	older := newTestEnv(st, &AmbientContext{SchemaVersion: "8.0"}, cat)
	v, ok, err = older.res.ResolveAlias(bg, "account.tax_22.12")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "22v INC", v)

	_, ok, err = te.res.ResolveAlias(bg, "account.tax_22.8")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegisterAlias_UpdatesInPlace(t *testing.T) {
	st := newTestStore()
	st.Put(store.AliasModel, 0, map[string]any{"module": "demo", "name": "p1", "model": "res.partner", "res_id": int64(7)})
	te := newTestEnv(st, nil, nil)

	v, _, err := te.res.ResolveAlias(bg, "demo.p1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)

	require.NoError(t, te.res.RegisterAlias(bg, "res.partner", "demo.p1", 9))

	v, _, err = te.res.ResolveAlias(bg, "demo.p1")
	require.NoError(t, err)
	assert.Equal(t, int64(9), v)

	rows := st.All(store.AliasModel)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(9), rows[0]["res_id"])
	assert.Empty(t, st.Calls("create"))
}

func TestRegisterAlias_DefaultModule(t *testing.T) {
	st := newTestStore()
	te := newTestEnv(st, &AmbientContext{AliasModule: "import"}, nil)

	require.NoError(t, te.res.RegisterAlias(bg, "res.partner", "alpha", 3))

	rows := st.All(store.AliasModel)
	require.Len(t, rows, 1)
	assert.Equal(t, "import", rows[0]["module"])
	assert.Equal(t, "alpha", rows[0]["name"])
	assert.Equal(t, "res.partner", rows[0]["model"])
	assert.Equal(t, int64(3), rows[0]["res_id"])

	assert.Error(t, te.res.RegisterAlias(bg, "res.partner", "demo.x", 0))
}
