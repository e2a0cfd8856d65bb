package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Catalog holds the per-entity tables that drive normalization: default
// values, column renames, value substitutions, formulas, per-version field
// names and version symbols.
//
// Example:
//
//	defaults:
//	  lang: it_IT
//	rename:
//	  "0": ref
//	  Ragione Sociale: name
//	substitutions:
//	  is_company:
//	    $BOOLEAN: true
//	formulas:
//	  display_name: ${name} (${city})
//	versions:
//	  res.users:
//	    "6.1":
//	      lang: context_lang
//	      partner_id: ""
//	symbols:
//	  account:
//	    tax_22:
//	      "8.0": "22v"
//	      "12.0": "22v INC"
//	variables:
//	  def_zip: "20100"
type Catalog struct {
	// Defaults supplies a value for a field the row left empty.
	Defaults map[string]any `yaml:"defaults"`

	// Rename maps a header column, by name or 0-based position, onto a
	// field name.
	Rename map[string]string `yaml:"rename"`

	// Substitutions maps raw values of a field onto stored values. The
	// special key $BOOLEAN maps any non-empty value to itself and an empty
	// value to its negation.
	Substitutions map[string]map[string]any `yaml:"substitutions"`

	// Formulas are templates evaluated for empty fields; ${field} refers to
	// other fields of the same row.
	Formulas map[string]string `yaml:"formulas"`

	// Versions maps entity -> schema version -> universal field name ->
	// versioned field name. An empty versioned name drops the field.
	Versions map[string]map[string]map[string]string `yaml:"versions"`

	// Symbols maps module -> symbol -> schema version -> value, for
	// three-part "module.name.version" aliases.
	Symbols map[string]map[string]map[string]string `yaml:"symbols"`

	// Variables are extra names available to macros and literals.
	Variables map[string]any `yaml:"variables"`
}

// BooleanKey is the substitution key that maps emptiness to a boolean.
const BooleanKey = "$BOOLEAN"

// LoadCatalog reads a YAML catalogue. An empty path yields an empty
// catalogue.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return &Catalog{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML catalogue and checks its rename table.
func ParseCatalog(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for from, to := range cat.Rename {
		if from == "" || to == "" {
			return nil, errors.New("parse catalog: rename entries need both a column and a field")
		}
	}
	return &cat, nil
}

// RenameFor returns the field a header column is renamed to, looking up
// the column position first and then its name.
func (c *Catalog) RenameFor(pos int, column string) (string, bool) {
	if c == nil {
		return "", false
	}
	if to, ok := c.Rename[strconv.Itoa(pos)]; ok {
		return to, true
	}
	to, ok := c.Rename[column]
	return to, ok
}

// Default returns the catalogue default for field.
func (c *Catalog) Default(field string) (any, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.Defaults[field]
	return v, ok
}

// Substitution returns the substitution table of field.
func (c *Catalog) Substitution(field string) (map[string]any, bool) {
	if c == nil {
		return nil, false
	}
	t, ok := c.Substitutions[field]
	return t, ok
}

// Formula returns the formula configured for field.
func (c *Catalog) Formula(field string) (string, bool) {
	if c == nil {
		return "", false
	}
	f, ok := c.Formulas[field]
	return f, ok && f != ""
}
