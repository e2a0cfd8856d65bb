package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/clodoo/internal/macro"
)

// AmbientContext is the state of one import run. It is created by the
// Importer at the start of a run and owned by that run alone.
type AmbientContext struct {
	// Set by the Importer when the run starts; read-only afterwards.
	CompanyID         int64
	CompanyName       string
	DefaultCountryID  int64
	CountryCode       string
	SchemaVersion     string
	DBType            string
	DryRun            bool
	ExitOnError       bool
	AliasModule       string
	NoFieldValidation bool

	// Vars holds extra read-only names for macros and literals.
	Vars macro.Vars

	// Written by the Importer when the header is resolved.
	Mandatory []string

	// Written by the Importer after each committed row.
	HeaderID     int64
	DefaultEmail string

	// Per-row lookup cache, cleared by the Importer before each row.
	lookups map[string][]int64
}

// MajorVersion returns the major part of SchemaVersion, or 0.
func (a *AmbientContext) MajorVersion() int {
	return majorVersion(a.SchemaVersion)
}

func majorVersion(v string) int {
	head, _, _ := strings.Cut(v, ".")
	n, err := strconv.Atoi(head)
	if err != nil {
		return 0
	}
	return n
}

// Lookup implements macro.Vars over the run state and Vars.
func (a *AmbientContext) Lookup(name string) (any, bool) {
	switch name {
	case "company_id", "def_company_id":
		return idOrFalse(a.CompanyID), true
	case "company_name", "def_company_name":
		return a.CompanyName, true
	case "def_country_id":
		return idOrFalse(a.DefaultCountryID), true
	case "country_code":
		return a.CountryCode, true
	case "header_id":
		return idOrFalse(a.HeaderID), true
	case "oe_version":
		return a.SchemaVersion, true
	case "db_type":
		return a.DBType, true
	case "def_email":
		return a.DefaultEmail, true
	}
	if a.Vars != nil {
		return a.Vars.Lookup(name)
	}
	return nil, false
}

func idOrFalse(id int64) any {
	if id == 0 {
		return false
	}
	return id
}

func (a *AmbientContext) resetLookups() {
	a.lookups = nil
}

func lookupKey(entity string, fields []string, values []Value, scoped bool) string {
	return fmt.Sprintf("%s|%q|%v|%t", entity, fields, values, scoped)
}

func (a *AmbientContext) cachedLookup(key string) ([]int64, bool) {
	ids, ok := a.lookups[key]
	return ids, ok
}

func (a *AmbientContext) rememberLookup(key string, ids []int64) {
	if a.lookups == nil {
		a.lookups = make(map[string][]int64)
	}
	a.lookups[key] = ids
}
