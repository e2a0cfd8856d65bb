package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/clodoo/internal/crypt"
	"github.com/JonMunkholm/clodoo/internal/macro"
	"github.com/JonMunkholm/clodoo/internal/store"
)

func TestEvaluate_CompanyScopedQuery(t *testing.T) {
	st := newTestStore()
	st.Put("res.partner", 0, map[string]any{"name": "Odoo SA", "company_id": companyYID})
	mine := st.Put("res.partner", 0, map[string]any{"name": "Odoo SA", "company_id": companyXID})
	te := newTestEnv(st, &AmbientContext{CompanyID: companyXID}, nil)

	v, err := te.eval.Evaluate(bg, "${res.partner::Odoo SA}", "parent_id", partnerSpec(), nil)
	require.NoError(t, err)
	assert.Equal(t, mine, v)
}

func TestEvaluate_QueryMissIsAbsent(t *testing.T) {
	st := newTestStore()
	te := newTestEnv(st, &AmbientContext{CompanyID: companyXID}, nil)

	v, err := te.eval.Evaluate(bg, "${res.partner::Odoo SA}", "parent_id", partnerSpec(), nil)
	require.NoError(t, err)
	assert.True(t, IsAbsent(v))
}

func TestEvaluate_QueryReturnField(t *testing.T) {
	st := newTestStore()
	te := newTestEnv(st, nil, nil)

	v, err := te.eval.Evaluate(bg, "${res.company(zip)[name]:75001}", "name", partnerSpec(), nil)
	require.NoError(t, err)
	assert.Equal(t, "CompanyY", v)

	v, err = te.eval.Evaluate(bg, "Ref ${res.company(zip):75001}", "ref", partnerSpec(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Ref 2", v)
}

func TestEvaluate_InnerMacroFirst(t *testing.T) {
	st := newTestStore()
	var events []string
	st.SetHook(func(c store.Call) error {
		if c.Op == "search" && c.Model == "res.company" {
			events = append(events, "search res.company")
		}
		return nil
	})
	amb := &AmbientContext{Vars: spyVars{
		values:   map[string]any{"def_zip": "20100"},
		onLookup: func(name string) { events = append(events, "lookup "+name) },
	}}
	te := newTestEnv(st, amb, nil)

	v, err := te.eval.Evaluate(bg, "${res.company(zip):${def_zip}}", "company_id", partnerSpec(), nil)
	require.NoError(t, err)
	assert.Equal(t, companyXID, v)
	assert.Equal(t, []string{"lookup def_zip", "search res.company"}, events)
}

func TestEvaluate_Variables(t *testing.T) {
	st := newTestStore()
	amb := &AmbientContext{
		CompanyID: companyXID,
		HeaderID:  42,
		Vars:      macro.MapVars{"def_zip": "20100"},
	}
	te := newTestEnv(st, amb, nil)

	tests := []struct {
		raw   string
		field string
		want  Value
	}{
		{"${company_id}", "company_id", companyXID},
		{"${header_id}", "parent_id", int64(42)},
		{"Zip ${def_zip}", "ref", "Zip 20100"},
		{"${def_zip}", "ref", "20100"},
		{"${unknown}", "ref", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v, err := te.eval.Evaluate(bg, tt.raw, tt.field, partnerSpec(), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestEvaluate_Aliases(t *testing.T) {
	st := newTestStore()
	st.Put(store.AliasModel, 0, map[string]any{"module": "demo", "name": "p1", "model": "res.partner", "res_id": int64(7)})
	te := newTestEnv(st, nil, nil)

	v, err := te.eval.Evaluate(bg, "demo.p1", "parent_id", partnerSpec(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)

	v, err = te.eval.Evaluate(bg, "${demo.p1}", "parent_id", partnerSpec(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)

	// A bare miss keeps its text; a miss inside a macro is absent.
	v, err = te.eval.Evaluate(bg, "demo.none", "ref", partnerSpec(), nil)
	require.NoError(t, err)
	assert.Equal(t, "demo.none", v)

	v, err = te.eval.Evaluate(bg, "${demo.none}", "ref", partnerSpec(), nil)
	require.NoError(t, err)
	assert.True(t, IsAbsent(v))
}

func TestEvaluate_AmbiguousAliasFails(t *testing.T) {
	st := newTestStore()
	st.Put(store.AliasModel, 0, map[string]any{"module": "demo", "name": "dup", "res_id": int64(7)})
	st.Put(store.AliasModel, 0, map[string]any{"module": "demo", "name": "dup", "res_id": int64(8)})
	te := newTestEnv(st, nil, nil)

	_, err := te.eval.Evaluate(bg, "demo.dup", "parent_id", partnerSpec(), nil)
	assert.ErrorIs(t, err, ErrAmbiguousAlias)

	_, err = te.eval.Evaluate(bg, "x ${demo.dup}", "ref", partnerSpec(), nil)
	assert.ErrorIs(t, err, ErrAmbiguousAlias)
}

func TestEvaluate_Literals(t *testing.T) {
	st := newTestStore()
	st.Put(store.AliasModel, 0, map[string]any{"module": "demo", "name": "p1", "res_id": int64(7)})
	te := newTestEnv(st, nil, nil)

	tests := []struct {
		name  string
		raw   string
		field string
		want  Value
	}{
		{"true", "True", "customer", true},
		{"false", "False", "customer", false},
		{"command list", "[(6, 0, [1, 2])]", "ref", []any{macro.Tuple{int64(6), int64(0), []any{int64(1), int64(2)}}}},
		{"command list with alias", "[(4,demo.p1)]", "ref", []any{macro.Tuple{int64(4), int64(7)}}},
		{"tuple text kept", "(1, 2)", "ref", "(1, 2)"},
		{"brackets kept", "[note]", "ref", "[note]"},
		{"many2one digits", "12", "parent_id", int64(12)},
		{"char digits kept", "12", "ref", "12"},
		{"amount", "1500.50", "credit_limit", 1500.5},
		{"amount with separators kept", "1,500.50", "credit_limit", "1,500.50"},
		{"macro literal", "${[1, 2]}", "ref", []any{int64(1), int64(2)}},
		{"equals prefix", "=${company_name}", "ref", "CompanyX"},
	}
	te.amb.CompanyName = "CompanyX"
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := te.eval.Evaluate(bg, tt.raw, tt.field, partnerSpec(), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}

	v, err := te.eval.Evaluate(bg, "None", "ref", partnerSpec(), nil)
	require.NoError(t, err)
	assert.True(t, IsAbsent(v))
}

func TestEvaluate_EmptyUsesDefaults(t *testing.T) {
	st := newTestStore()
	te := newTestEnv(st, &AmbientContext{CompanyID: companyXID, DefaultCountryID: italyID}, nil)

	v, err := te.eval.Evaluate(bg, "", "company_id", partnerSpec(), nil)
	require.NoError(t, err)
	assert.Equal(t, companyXID, v)

	v, err = te.eval.Evaluate(bg, "", "country_id", partnerSpec(), nil)
	require.NoError(t, err)
	assert.Equal(t, italyID, v)

	v, err = te.eval.Evaluate(bg, "", "ref", partnerSpec(), nil)
	require.NoError(t, err)
	assert.Equal(t, "", v)

	v, err = te.eval.EvaluateField(bg, "res.partner", "company_id", "")
	require.NoError(t, err)
	assert.Equal(t, "", v)
}

func TestEvaluate_NonStringUnchanged(t *testing.T) {
	te := newTestEnv(newTestStore(), nil, nil)
	for _, v := range []Value{int64(3), true, 2.5} {
		got, err := te.eval.Evaluate(bg, v, "ref", partnerSpec(), nil)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestEvaluate_Encrypted(t *testing.T) {
	c, err := crypt.New("secret")
	require.NoError(t, err)
	sealed, err := c.Encrypt("s3cr3t")
	require.NoError(t, err)

	st := newTestStore()
	amb := &AmbientContext{}
	te := newTestEnv(st, amb, nil)
	ev := NewEvaluator(te.env, te.res, c)

	v, err := ev.Evaluate(bg, sealed, "ref", partnerSpec(), nil)
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", v)

	// Without a key the value stays sealed.
	v, err = te.eval.Evaluate(bg, sealed, "ref", partnerSpec(), nil)
	require.NoError(t, err)
	assert.Equal(t, sealed, v)
}

func TestEvaluate_SelectorQueries(t *testing.T) {
	te := newTestEnv(newTestStore(), &AmbientContext{SchemaVersion: "12.0"}, nil)
	spec := partnerSpec()
	spec.DBTypeSelector = "db_type"

	v, err := te.eval.Evaluate(bg, "${res.partner[db_type]:x}", "ref", spec, nil)
	require.NoError(t, err)
	assert.Equal(t, "db_type", v)

	v, err = te.eval.Evaluate(bg, "${ir.module[oe_versions]:12.0}", "customer", spec, nil)
	require.NoError(t, err)
	assert.Equal(t, true, v)
}
