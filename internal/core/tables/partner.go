package tables

import (
	"context"
	"slices"

	"github.com/JonMunkholm/clodoo/internal/core"
	"github.com/JonMunkholm/clodoo/internal/macro"
)

func init() {
	core.RegisterProvider("res.partner", partnerProvider{})
	core.RegisterProvider("res.users", userProvider{})
}

// partnerProvider fills partner defaults: the company flag, the VAT
// country prefix and the state looked up within the row's country.
type partnerProvider struct {
	core.GenericProvider
}

func (p partnerProvider) DefaultFields(ctx context.Context, env *core.Env, entity string) []string {
	fields := p.GenericProvider.DefaultFields(ctx, env, entity)
	if env.Schema.HasField(ctx, entity, "is_company") && !slices.Contains(fields, "is_company") {
		fields = append(fields, "is_company")
	}
	return fields
}

func (partnerProvider) NullValue(_ context.Context, _ *core.Env, field string, row *core.Row) (core.Value, bool) {
	if field != "is_company" {
		return nil, false
	}
	// A row split into first and last name is a person.
	person := (row.Has("name_first") && row.Has("name_last")) ||
		row.Text("company_type") == "person"
	return !person, true
}

func (partnerProvider) DefaultValue(ctx context.Context, env *core.Env, field string, v core.Value, row *core.Row) core.Value {
	s, ok := v.(string)
	if !ok || s == "" || macro.Contains(s) {
		return v
	}
	switch field {
	case "vat":
		return NormalizeVAT(s, env.CountryCode(ctx, row.Value("country_id")))
	case "state_id":
		return env.StateID(ctx, s, row.Value("country_id"))
	}
	return v
}

// userProvider gives users without an email the run's default address.
type userProvider struct {
	core.GenericProvider
}

func (p userProvider) DefaultFields(ctx context.Context, env *core.Env, entity string) []string {
	fields := p.GenericProvider.DefaultFields(ctx, env, entity)
	if !slices.Contains(fields, "email") {
		fields = append(fields, "email")
	}
	return fields
}

func (userProvider) NullValue(_ context.Context, env *core.Env, field string, _ *core.Row) (core.Value, bool) {
	if field != "email" || env.Ambient.DefaultEmail == "" {
		return nil, false
	}
	return env.Ambient.DefaultEmail, true
}
