package tables

import (
	"context"
	"slices"

	"github.com/JonMunkholm/clodoo/internal/core"
)

func init() {
	core.RegisterProvider("account.account", accountProvider{})
	core.RegisterProvider("account.account.type", accountProvider{})
	core.RegisterProvider("account.tax", nullProvider{field: "applicable_type", value: "true", ifDeclared: true})
	core.RegisterProvider("account.invoice", nullProvider{field: "state", value: "draft"})
	core.RegisterProvider("ir.sequence", nullProvider{field: "number_increment", value: int64(1)})
}

// accountProvider derives a missing code from the account name.
type accountProvider struct {
	core.GenericProvider
}

func (accountProvider) NullValue(_ context.Context, _ *core.Env, field string, row *core.Row) (core.Value, bool) {
	if field != "code" {
		return nil, false
	}
	name := core.Stringify(row.Value("name"))
	if name == "" {
		return nil, false
	}
	return AccountCode(name), true
}

// nullProvider fills one field with a constant when the row leaves it
// empty. With ifDeclared the field is only added when the entity has it.
type nullProvider struct {
	core.GenericProvider
	field      string
	value      core.Value
	ifDeclared bool
}

func (p nullProvider) DefaultFields(ctx context.Context, env *core.Env, entity string) []string {
	fields := p.GenericProvider.DefaultFields(ctx, env, entity)
	if slices.Contains(fields, p.field) {
		return fields
	}
	if p.ifDeclared && !env.Schema.HasField(ctx, entity, p.field) {
		return fields
	}
	return append(fields, p.field)
}

func (p nullProvider) NullValue(_ context.Context, _ *core.Env, field string, _ *core.Row) (core.Value, bool) {
	if field != p.field {
		return nil, false
	}
	return p.value, true
}
