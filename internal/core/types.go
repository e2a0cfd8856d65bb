package core

import (
	"slices"
	"strings"
	"time"
)

// Value is a resolved field value: string, int64, float64, bool, []any,
// macro.Tuple or Absent.
type Value = any

type absentValue struct{}

func (absentValue) String() string { return "<absent>" }

// Absent marks a value that resolved to nothing. Fields holding it are
// left out of writes.
var Absent Value = absentValue{}

// IsAbsent reports whether v is Absent or nil.
func IsAbsent(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(absentValue)
	return ok
}

// isBlank reports whether v is absent or an empty string.
func isBlank(v Value) bool {
	if IsAbsent(v) {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// ----------------------------------------------------------------------------
// Row
// ----------------------------------------------------------------------------

// Row is an ordered mapping from field name to value. Normalization builds
// a new row and leaves the one it reads untouched.
type Row struct {
	names  []string
	values map[string]Value
}

// NewRow builds a row from a header and one record. Missing trailing
// cells are left out.
func NewRow(header, record []string) *Row {
	r := &Row{values: make(map[string]Value, len(header))}
	for i, name := range header {
		if i >= len(record) {
			break
		}
		r.Set(name, record[i])
	}
	return r
}

// Get returns the value of name.
func (r *Row) Get(name string) (Value, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Value returns the value of name or Absent.
func (r *Row) Value(name string) Value {
	if v, ok := r.values[name]; ok {
		return v
	}
	return Absent
}

// Text returns the value of name when it is a string, else "".
func (r *Row) Text(name string) string {
	s, _ := r.values[name].(string)
	return s
}

// Has reports whether name is present.
func (r *Row) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// Set stores v under name, appending name when new.
func (r *Row) Set(name string, v Value) {
	if r.values == nil {
		r.values = make(map[string]Value)
	}
	if _, ok := r.values[name]; !ok {
		r.names = append(r.names, name)
	}
	r.values[name] = v
}

// Delete removes name.
func (r *Row) Delete(name string) {
	if _, ok := r.values[name]; !ok {
		return
	}
	delete(r.values, name)
	r.names = slices.DeleteFunc(r.names, func(n string) bool { return n == name })
}

// Names returns the field names in insertion order.
func (r *Row) Names() []string {
	return slices.Clone(r.names)
}

// Len returns the number of fields.
func (r *Row) Len() int { return len(r.names) }

// Lookup makes the row usable as a macro variable set.
func (r *Row) Lookup(name string) (any, bool) {
	v, ok := r.values[name]
	if !ok || IsAbsent(v) {
		return nil, false
	}
	return v, true
}

// ----------------------------------------------------------------------------
// Import specification
// ----------------------------------------------------------------------------

// ImportOptions is the configured part of an ImportSpec. Empty fields are
// derived from the input header.
type ImportOptions struct {
	// Entity is the target model. Empty derives it from the file name.
	Entity string `json:"entity,omitempty"`

	// EntityByVersion overrides Entity for specific schema versions.
	EntityByVersion map[string]string `json:"entity_by_version,omitempty"`

	// KeyField and DescriptionField are comma-separated field lists.
	KeyField         string `json:"key_field,omitempty"`
	DescriptionField string `json:"description_field,omitempty"`

	// HideCompany forces company scoping off (true) or on (false). Nil
	// decides from the entity schema.
	HideCompany *bool `json:"hide_company,omitempty"`

	DBTypeSelector string `json:"db_type_selector,omitempty"`

	// AliasEntity and AliasField register a second alias for the record
	// reached through AliasField.
	AliasEntity string `json:"alias_entity,omitempty"`
	AliasField  string `json:"alias_field,omitempty"`
}

// ImportSpec describes how to read one source for one entity. It is built
// once from ImportOptions and the header, then left unchanged for the run.
type ImportSpec struct {
	Entity            string
	EntityByVersion   map[string]string
	KeyFields         []string
	DescriptionFields []string
	HideCompanyScope  bool
	DBTypeSelector    string
	AliasEntity       string
	AliasField        string
	// ReplaceByID enables lookup by the id column before the key fields.
	ReplaceByID bool
}

// EntityFor returns the entity name for a schema version.
func (s *ImportSpec) EntityFor(version string) string {
	if e, ok := s.EntityByVersion[version]; ok && e != "" {
		return e
	}
	if major, _, ok := strings.Cut(version, "."); ok {
		if e, ok := s.EntityByVersion[major]; ok && e != "" {
			return e
		}
	}
	return s.Entity
}

// ----------------------------------------------------------------------------
// Results
// ----------------------------------------------------------------------------

// Status is the overall outcome of one import call.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// RowOutcome is what happened to one data row.
type RowOutcome int

const (
	RowCreated RowOutcome = iota
	RowUpdated
	RowUnchanged
	RowSkipped
	RowFailed
)

func (o RowOutcome) String() string {
	switch o {
	case RowCreated:
		return "created"
	case RowUpdated:
		return "updated"
	case RowUnchanged:
		return "unchanged"
	case RowSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// FailedRow records a row that could not be committed.
type FailedRow struct {
	Line   int    `json:"line"`
	Key    string `json:"key,omitempty"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
	Code   string `json:"code"`
}

// ImportResult summarizes one import call.
type ImportResult struct {
	RunID    string `json:"run_id"`
	FileName string `json:"file_name"`
	Entity   string `json:"entity"`
	Status   Status `json:"status"`
	DryRun   bool   `json:"dry_run"`

	Rows      int `json:"rows"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Malformed int `json:"malformed"`

	FailedRows []FailedRow `json:"failed_rows,omitempty"`

	// Error is the structural or aborting error, if any.
	Error string `json:"error,omitempty"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

func (r *ImportResult) count(o RowOutcome) {
	switch o {
	case RowCreated:
		r.Created++
	case RowUpdated:
		r.Updated++
	case RowUnchanged:
		r.Unchanged++
	case RowSkipped:
		r.Skipped++
	case RowFailed:
		r.Failed++
	}
}
