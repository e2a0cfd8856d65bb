package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/clodoo/internal/config"
	"github.com/JonMunkholm/clodoo/internal/logging"
)

// Helper columns accepted whatever the entity schema says. They steer the
// importer or get merged away before commit.
var helperFields = map[string]bool{
	"db_type":           true,
	"oe_versions":       true,
	"name2":             true,
	"name_first":        true,
	"name_last":         true,
	"customer-supplier": true,
}

// Normalizer turns a raw input row into the field map that is evaluated
// and committed.
type Normalizer struct {
	env        *Env
	translator *Translator
	eval       *Evaluator
}

// NewNormalizer returns a normalizer.
func NewNormalizer(env *Env, tr *Translator, ev *Evaluator) *Normalizer {
	return &Normalizer{env: env, translator: tr, eval: ev}
}

// Normalize maps raw onto entity fields: renames, validation, value
// substitution, company and mandatory backfill, formulas and provider
// defaults, field merges and customer/supplier flags. raw is not changed.
func (n *Normalizer) Normalize(ctx context.Context, raw *Row, spec *ImportSpec) (*Row, error) {
	entity := spec.EntityFor(n.env.Ambient.SchemaVersion)
	out := n.mapColumns(ctx, raw, entity)

	if !out.Has("company_id") && !spec.HideCompanyScope {
		out.Set("company_id", false)
	}
	for _, name := range n.env.Ambient.Mandatory {
		if !out.Has(name) {
			out.Set(name, "")
		}
	}

	if err := n.fill(ctx, out, entity, spec); err != nil {
		return nil, err
	}

	mergeNames(out)
	mergeStreet(out)
	tagCustomerSupplier(out)
	return out, nil
}

// mapColumns renames and validates the columns of raw and applies value
// substitutions.
func (n *Normalizer) mapColumns(ctx context.Context, raw *Row, entity string) *Row {
	out := &Row{}
	log := logging.FromContext(ctx)
	validate := !n.env.Ambient.NoFieldValidation && len(n.env.Schema.Fields(ctx, entity)) > 0

	for pos, column := range raw.Names() {
		name := n.translator.NameForVersion(entity, column)
		if name == "" {
			continue
		}
		if to, ok := n.env.Catalog.RenameFor(pos, name); ok {
			name = to
		} else {
			name, _, _ = strings.Cut(name, "/")
			name, _, _ = strings.Cut(name, ":")
		}
		if validate && !helperFields[name] && !n.knownField(ctx, entity, name) {
			log.Debug("column dropped", "entity", entity, "column", column, "field", name)
			continue
		}

		v := raw.Value(column)
		if table, ok := n.env.Catalog.Substitution(name); ok {
			v = substitute(table, v)
		}
		out.Set(name, v)
	}
	return out
}

func (n *Normalizer) knownField(ctx context.Context, entity, name string) bool {
	switch {
	case (entity == "res.users" || entity == "res.partner") && name == "name":
		return true
	case entity == "ir.config.parameter" && (name == "key" || name == "value"):
		return true
	}
	return n.env.Schema.HasField(ctx, entity, name)
}

// substitute maps a raw value through a substitution table. A value the
// table does not list is kept unless the table has a boolean entry.
func substitute(table map[string]any, v Value) Value {
	s := Stringify(v)
	if to, ok := table[s]; ok {
		return to
	}
	b, ok := table[config.BooleanKey]
	if !ok {
		return v
	}
	flag, _ := b.(bool)
	if s != "" {
		return flag
	}
	return !flag
}

// fill evaluates formulas for empty fields and runs the remaining values
// through catalogue and provider defaults. Fields are processed in row
// order so later formulas see earlier results.
func (n *Normalizer) fill(ctx context.Context, row *Row, entity string, spec *ImportSpec) error {
	for _, name := range row.Names() {
		v := row.Value(name)
		if formula, ok := n.env.Catalog.Formula(name); ok && isBlank(v) {
			res, err := n.eval.evaluateWith(ctx, row, formula, name, spec, row)
			if err != nil {
				return fmt.Errorf("formula %s: %w", name, err)
			}
			row.Set(name, res)
			continue
		}
		row.Set(name, n.env.fillValue(ctx, entity, name, v, row))
	}
	return nil
}

// mergeNames folds name2 into name and, for persons, name_last and
// name_first into name.
func mergeNames(row *Row) {
	if row.Has("name2") {
		name2 := Stringify(row.Value("name2"))
		if row.Has("name") {
			row.Set("name", strings.TrimSpace(Stringify(row.Value("name"))+" "+name2))
		} else {
			row.Set("name", name2)
		}
		row.Delete("name2")
	}
	if row.Has("name_first") && row.Has("name_last") &&
		(isPerson(row) || isBlank(row.Value("name"))) {
		row.Set("name", strings.TrimSpace(Stringify(row.Value("name_last"))+" "+Stringify(row.Value("name_first"))))
		row.Delete("name_first")
		row.Delete("name_last")
	}
}

// mergeStreet appends a house number given in street2 to street.
func mergeStreet(row *Row) {
	num, ok := row.Value("street2").(string)
	if !ok || !isDigits(num) || !row.Has("street") {
		return
	}
	row.Set("street", Stringify(row.Value("street"))+", "+num)
	row.Set("street2", "")
}

// isPerson reports whether the row describes a natural person.
func isPerson(row *Row) bool {
	if v, ok := row.Get("is_company"); ok {
		if b, isBool := v.(bool); isBool && !b {
			return true
		}
	}
	return row.Text("company_type") == "person"
}

// tagCustomerSupplier derives customer and supplier from the free-text
// customer-supplier column. Persons are never tagged.
func tagCustomerSupplier(row *Row) {
	hint, has := row.Get("customer-supplier")
	if has || isPerson(row) {
		if row.Has("customer") {
			row.Set("customer", false)
		}
		if row.Has("supplier") {
			row.Set("supplier", false)
		}
	}
	if !has {
		return
	}
	row.Delete("customer-supplier")
	if isPerson(row) {
		return
	}
	text := strings.ToLower(Stringify(hint))
	if strings.Contains(text, "customer") || strings.Contains(text, "client") {
		row.Set("customer", true)
	}
	if strings.Contains(text, "supplier") || strings.Contains(text, "vendor") || strings.Contains(text, "fornitore") {
		row.Set("supplier", true)
	}
}
