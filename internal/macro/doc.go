// Package macro parses the "${...}" expression language used in import
// cells.
//
// A cell is plain text with zero or more macro occurrences. Macros nest:
// "${res.company(zip):${def_zip}}" holds an inner macro that is expanded
// before its enclosing one. This package only deals with syntax; what a
// macro body means (a variable, an alias, a store query) is decided by the
// caller.
//
// Malformed input is never an error here. An unterminated "${" is kept as
// literal text and an unmatched "}" is ordinary text.
package macro
