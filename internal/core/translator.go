package core

import (
	"maps"
	"slices"
	"strings"

	"github.com/JonMunkholm/clodoo/internal/config"
	"github.com/JonMunkholm/clodoo/internal/store"
)

// Translator maps universal field names onto the names used by one schema
// version and back. Catalogue tables extend and override the built-in ones.
type Translator struct {
	catalog *config.Catalog
	version string
	major   int
}

// NewTranslator returns a translator for the given schema version.
func NewTranslator(cat *config.Catalog, version string) *Translator {
	return &Translator{catalog: cat, version: version, major: majorVersion(version)}
}

// partnerFieldsV6 are res.partner fields that moved to addresses in 6.x.
var partnerFieldsV6 = []string{
	"zip", "image", "country_id", "fax", "street",
	"state_id", "is_company", "street2", "type",
}

// table returns universal name -> versioned name for entity. An empty
// versioned name means the field does not exist in this version.
func (t *Translator) table(entity string) map[string]string {
	out := make(map[string]string)
	switch entity {
	case "account.invoice":
		if t.major > 0 && t.major < 10 {
			out["move_name"] = "internal_number"
		}
	case "res.partner":
		if t.major == 6 {
			for _, f := range partnerFieldsV6 {
				out[f] = ""
			}
		}
	case "res.users":
		if t.version == "6.1" {
			out["partner_id"] = ""
			out["country_id"] = ""
			out["lang"] = "context_lang"
			out["tz"] = "context_tz"
			out["email"] = "user_email"
		}
	}
	if t.catalog != nil {
		byVersion := t.catalog.Versions[entity]
		if m, ok := byVersion[t.version]; ok {
			maps.Copy(out, m)
		} else if m, ok := byVersion[majorKey(t.version)]; ok {
			maps.Copy(out, m)
		}
	}
	return out
}

func majorKey(version string) string {
	major, _, _ := strings.Cut(version, ".")
	return major
}

// NameForVersion returns the versioned name of column, or "" when the
// column does not exist in this version.
func (t *Translator) NameForVersion(entity, column string) string {
	if to, ok := t.table(entity)[column]; ok {
		return to
	}
	return column
}

// ToVersion renames a value map to versioned field names, dropping fields
// the version lacks.
func (t *Translator) ToVersion(entity string, vals map[string]any) map[string]any {
	tbl := t.table(entity)
	out := make(map[string]any, len(vals))
	for name, v := range vals {
		to, ok := tbl[name]
		switch {
		case !ok:
			out[name] = v
		case to != "":
			out[to] = v
		}
	}
	return out
}

// FromVersion returns a copy of rec that also carries its versioned fields
// under their universal names.
func (t *Translator) FromVersion(entity string, rec store.Record) store.Record {
	out := maps.Clone(rec)
	if out == nil {
		out = store.Record{}
	}
	for universal, versioned := range t.table(entity) {
		if versioned == "" || versioned == universal {
			continue
		}
		if v, ok := rec[versioned]; ok {
			if _, taken := out[universal]; !taken {
				out[universal] = v
			}
		}
	}
	return out
}

// Symbol returns the value a "module.name.version" alias stands for. The
// version named by the alias selects the table entry; an empty version
// means this translator's own. A key sharing the major version matches
// when no exact key exists.
func (t *Translator) Symbol(module, name, version string) (string, bool) {
	if t.catalog == nil {
		return "", false
	}
	if version == "" {
		version = t.version
	}
	byVersion := t.catalog.Symbols[module][name]
	if v := byVersion[version]; v != "" {
		return v, true
	}
	major := majorKey(version)
	for _, key := range slices.Sorted(maps.Keys(byVersion)) {
		if majorKey(key) == major && byVersion[key] != "" {
			return byVersion[key], true
		}
	}
	return "", false
}
