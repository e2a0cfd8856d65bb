package pgstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/clodoo/internal/store"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		name     string
		domain   store.Domain
		offset   int
		wantSQL  string
		wantArgs []any
	}{
		{"empty", nil, 0, "TRUE", nil},
		{
			"implicit and",
			store.Domain{store.Eq("company_id", int64(1)), store.Eq("name", "Alpha")},
			0,
			`"company_id" = $1 AND "name" = $2`,
			[]any{int64(1), "Alpha"},
		},
		{
			"or with offset",
			store.Domain{store.Or, store.Eq("name", "~x"), store.Eq("name", "x")},
			2,
			`("name" = $3 OR "name" = $4)`,
			[]any{"~x", "x"},
		},
		{"unset", store.Domain{store.Eq("parent_id", false)}, 0, `"parent_id" IS NULL`, nil},
		{"set", store.Domain{store.Term{Field: "parent_id", Op: "!=", Value: false}}, 0, `"parent_id" IS NOT NULL`, nil},
		{
			"ilike wraps",
			store.Domain{store.Term{Field: "name", Op: "ilike", Value: "odoo"}},
			0,
			`"name"::text ILIKE $1`,
			[]any{"%odoo%"},
		},
		{
			"=ilike exact",
			store.Domain{store.Term{Field: "code", Op: "=ilike", Value: "it"}},
			0,
			`"code"::text ILIKE $1`,
			[]any{"it"},
		},
		{
			"not in",
			store.Domain{store.Not, store.Term{Field: "id", Op: "in", Value: []int64{1, 2}}},
			0,
			`NOT ("id" = ANY($1))`,
			[]any{[]int64{1, 2}},
		},
		{"comparison", store.Domain{store.Term{Field: "id", Op: ">", Value: 1}}, 0, `"id" > $1`, []any{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := Compile(tt.domain, tt.offset)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	_, _, err := Compile(store.Domain{store.Or, store.Eq("a", 1)}, 0)
	assert.Error(t, err)

	_, _, err = Compile(store.Domain{store.Term{Field: "a", Op: "child_of", Value: 1}}, 0)
	assert.Error(t, err)
}

func TestCompileOrder(t *testing.T) {
	got, err := compileOrder("name, id desc")
	require.NoError(t, err)
	assert.Equal(t, `"name", "id" DESC`, got)

	got, err = compileOrder("")
	require.NoError(t, err)
	assert.Equal(t, `"id"`, got)

	_, err = compileOrder("name; DROP TABLE x")
	assert.Error(t, err)
}

func TestTable(t *testing.T) {
	assert.Equal(t, `"res_partner"`, Table("res.partner"))
	assert.Equal(t, `"ir_model_data"`, Table(store.AliasModel))
}
