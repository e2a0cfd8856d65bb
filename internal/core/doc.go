// Package core loads tabular records into an Odoo-like record store.
//
// It is independent of any transport: the web server, the CLI and the
// tests all drive the same [Importer] over a [store.Store].
//
// # Architecture
//
// One import run wires these parts together:
//
//   - AmbientContext: the run's company, country, schema version and
//     flags, plus the id of the last record written (header_id).
//   - Translator: renames fields between the universal names used in
//     input files and the names of a given schema version.
//   - Resolver: turns aliases (module.name), exact and fuzzy name lookups
//     into record ids, and registers aliases for written records.
//   - Evaluator: expands ${...} macros bottom-up, runs query expressions
//     (model::value, model(params)[field]:value) and converts the result
//     to the field's type.
//   - Normalizer: maps a raw row onto entity fields and fills defaults
//     through the entity's [Provider].
//   - Importer: reads the CSV, finds the existing record for each row and
//     creates it or writes only the fields that changed.
//
// # Providers
//
// Entity specific defaults are registered at init time with
// [RegisterProvider]; entities without one use [GenericProvider], which
// takes the mandatory fields from the store schema:
//
//	func init() {
//	    core.RegisterProvider("ir.sequence", nullProvider{field: "number_increment", value: int64(1)})
//	}
//
// # Streaming Input
//
// Input is read row by row. [WrapSource] strips a byte order mark,
// replaces invalid UTF-8 and enforces the configured size limit.
//
// # Error Handling
//
// A failing row is recorded in the [ImportResult] and the run goes on
// unless exit on error is set. Structural failures (no header, no key
// column, unreadable source) fail the whole run. [MapError] maps technical
// errors to coded user messages:
//
//   - ALIAS001-ALIAS002: alias errors
//   - HDR001-HDR003: header errors
//   - SRC001-SRC003: source errors
//   - STORE001-STORE007: store errors
//   - ROW001-ROW003: row errors
//   - RUN001-RUN004: run errors
//
// # Run History
//
// [Service] admits runs through a [RunLimiter] and keeps finished runs in
// a [RunHistory] graded by severity:
//
//   - Low: every row committed, unchanged or skipped
//   - Medium: some rows failed
//   - High: the run failed
package core
