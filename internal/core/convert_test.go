package core

import (
	"testing"
	"time"
)

// ----------------------------------------------------------------------------
// ToFloat Tests
// ----------------------------------------------------------------------------

func TestToFloat(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		want      float64
	}{
		{name: "positive integer", input: "123", wantValid: true, want: 123},
		{name: "negative integer", input: "-456", wantValid: true, want: -456},
		{name: "decimal number", input: "123.45", wantValid: true, want: 123.45},
		{name: "leading decimal point", input: ".99", wantValid: true, want: 0.99},
		{name: "dollar sign kept", input: "$1,234.50", wantValid: false},
		{name: "euro sign kept", input: "€99", wantValid: false},
		{name: "thousands separator kept", input: "1,234.50", wantValid: false},
		{name: "decimal comma kept", input: "1.234,56", wantValid: false},
		{name: "accounting negative kept", input: "(12.50)", wantValid: false},
		{name: "scientific notation", input: "1e3", wantValid: true, want: 1000},
		{name: "surrounding spaces", input: "  7  ", wantValid: true, want: 7},
		{name: "empty string", input: "", wantValid: false},
		{name: "text", input: "abc", wantValid: false},
		{name: "two decimal points", input: "1.2.3", wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToFloat(tt.input)
			if ok != tt.wantValid {
				t.Fatalf("ToFloat(%q) valid = %v, want %v", tt.input, ok, tt.wantValid)
			}
			if ok && got != tt.want {
				t.Errorf("ToFloat(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ToDate Tests
// ----------------------------------------------------------------------------

func TestToDate(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		want      string
	}{
		{name: "ISO", input: "2024-03-15", wantValid: true, want: "2024-03-15"},
		{name: "ISO slashes", input: "2024/03/15", wantValid: true, want: "2024-03-15"},
		{name: "compact", input: "20240315", wantValid: true, want: "2024-03-15"},
		{name: "day first", input: "15/03/2024", wantValid: true, want: "2024-03-15"},
		{name: "day first dots", input: "15.03.2024", wantValid: true, want: "2024-03-15"},
		{name: "month name", input: "Mar 15, 2024", wantValid: true, want: "2024-03-15"},
		{name: "two digit year", input: "15/03/24", wantValid: true, want: "2024-03-15"},
		{name: "empty", input: "", wantValid: false},
		{name: "not a date", input: "yesterday", wantValid: false},
		{name: "invalid day", input: "2024-02-30", wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToDate(tt.input)
			if ok != tt.wantValid {
				t.Fatalf("ToDate(%q) valid = %v, want %v", tt.input, ok, tt.wantValid)
			}
			if ok && got.Format(dateLayout) != tt.want {
				t.Errorf("ToDate(%q) = %s, want %s", tt.input, got.Format(dateLayout), tt.want)
			}
		})
	}
}

func TestToDate_TwoDigitYearPivot(t *testing.T) {
	future := time.Now().Year() + TwoDigitYearPivot + 1
	input := "01/01/" + time.Date(future, 1, 1, 0, 0, 0, 0, time.UTC).Format("06")

	got, ok := ToDate(input)
	if !ok {
		t.Fatalf("ToDate(%q) not parsed", input)
	}
	if got.Year() != future-100 {
		t.Errorf("ToDate(%q) year = %d, want %d", input, got.Year(), future-100)
	}
}

func TestToDateTime(t *testing.T) {
	got, ok := ToDateTime("2024-03-15 10:30:00")
	if !ok || got.Format(datetimeLayout) != "2024-03-15 10:30:00" {
		t.Errorf("ToDateTime() = %v, %v", got, ok)
	}
	got, ok = ToDateTime("15/03/2024")
	if !ok || got.Format(datetimeLayout) != "2024-03-15 00:00:00" {
		t.Errorf("ToDateTime(date) = %v, %v", got, ok)
	}
}

// ----------------------------------------------------------------------------
// ToBool Tests
// ----------------------------------------------------------------------------

func TestToBool(t *testing.T) {
	tests := []struct {
		input     string
		want      bool
		wantValid bool
	}{
		{"true", true, true},
		{"TRUE", true, true},
		{"yes", true, true},
		{"y", true, true},
		{"1", true, true},
		{"false", false, true},
		{"No", false, true},
		{"0", false, true},
		{" f ", false, true},
		{"", false, false},
		{"maybe", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ToBool(tt.input)
			if ok != tt.wantValid || got != tt.want {
				t.Errorf("ToBool(%q) = %v, %v; want %v, %v", tt.input, got, ok, tt.want, tt.wantValid)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// convertField Tests
// ----------------------------------------------------------------------------

func TestConvertField(t *testing.T) {
	tests := []struct {
		name   string
		typ    string
		input  string
		want   Value
		wantOK bool
	}{
		{name: "integer digits", typ: "integer", input: "42", want: int64(42), wantOK: true},
		{name: "many2one digits", typ: "many2one", input: "7", want: int64(7), wantOK: true},
		{name: "integer text kept", typ: "integer", input: "4a", wantOK: false},
		{name: "float amount", typ: "float", input: "1000.5", want: 1000.5, wantOK: true},
		{name: "float with separators kept", typ: "float", input: "1,000.5", wantOK: false},
		{name: "european amount kept", typ: "monetary", input: "1.234,56", wantOK: false},
		{name: "monetary digits", typ: "monetary", input: "12", want: 12.0, wantOK: true},
		{name: "date", typ: "date", input: "31/12/2023", want: "2023-12-31", wantOK: true},
		{name: "boolean", typ: "boolean", input: "yes", want: true, wantOK: true},
		{name: "char untouched", typ: "char", input: "42", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := convertField(tt.typ, tt.input)
			if ok != tt.wantOK {
				t.Fatalf("convertField(%q, %q) ok = %v, want %v", tt.typ, tt.input, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("convertField(%q, %q) = %#v, want %#v", tt.typ, tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// CleanCell Tests
// ----------------------------------------------------------------------------

func TestCleanCell(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  name ", "name"},
		{`="code"`, "code"},
		{`"vat"`, "vat"},
		{`'ref'`, "ref"},
		{"country_id/id", "country_id/id"},
	}
	for _, tt := range tests {
		if got := CleanCell(tt.input); got != tt.want {
			t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
