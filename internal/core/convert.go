package core

// convert.go turns cell text into the value a typed field stores.
//
// Input files come from spreadsheets and other systems, so the text is
// messy: several date layouts, yes/no flags. Amounts convert only when
// they are plain numbers. A value that cannot be converted is left as text
// and the store decides.

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// numericRegex matches a plain number: integers, decimals and scientific
// notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are read. Years more than
// this many years in the future are moved to the previous century.
var TwoDigitYearPivot = 20

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02 15:04:05"
)

// Date layouts split by year format for 2-digit year handling. Day-first
// layouts come before month-first ones.
var (
	twoDigitYearLayouts = []string{
		"2/1/06", "02/01/06", "2-1-06", "2.1.06", "02.01.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02", "20060102",
		"2/1/2006", "02/01/2006", "2-1-2006", "02-01-2006", "2.1.2006", "02.01.2006",
		"Jan 2, 2006", "2 Jan 2006",
	}
	datetimeLayouts = []string{
		datetimeLayout, "2006-01-02T15:04:05", time.RFC3339,
		"02/01/2006 15:04:05", "02/01/2006 15:04",
	}
)

// convertField converts s for a field of type typ.
func convertField(typ, s string) (Value, bool) {
	switch typ {
	case "integer", "many2one":
		if isDigits(s) {
			return toNumber(s, typ)
		}
	case "float", "monetary":
		return ToFloat(s)
	case "boolean":
		return ToBool(s)
	case "date":
		if t, ok := ToDate(s); ok {
			return t.Format(dateLayout), true
		}
	case "datetime":
		if t, ok := ToDateTime(s); ok {
			return t.Format(datetimeLayout), true
		}
	}
	return nil, false
}

// ToDate parses a date in one of the accepted layouts. 2-digit years are
// resolved with TwoDigitYearPivot.
func ToDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	// Try 4-digit year layouts first (unambiguous)
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}
	return time.Time{}, false
}

// ToDateTime parses a timestamp, or a bare date at midnight.
func ToDateTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return ToDate(s)
}

// ToFloat parses a purely numeric amount. Text with currency symbols,
// separators or a decimal comma is rejected so the store can judge it;
// "1.234,56" must not turn into 1.23456.
func ToFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

// ToBool accepts true/false, yes/no, t/f, y/n and 1/0.
func ToBool(s string) (bool, bool) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	}
	return false, false
}

// CleanCell removes spreadsheet artifacts from a header cell: surrounding
// blanks, an Excel formula prefix (="...") and surrounding quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	}
	return strings.Trim(s, `"'`)
}
