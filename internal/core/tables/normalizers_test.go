package tables

import "testing"

func TestNormalizeVAT(t *testing.T) {
	tests := []struct {
		name    string
		vat     string
		country string
		want    string
	}{
		{"italian digits", "12345678901", "IT", "IT12345678901"},
		{"italian short number padded", "345678901", "IT", "IT00345678901"},
		{"separators removed", "123 456.789-01", "IT", "IT12345678901"},
		{"already prefixed", "fr 123", "IT", "FR123"},
		{"french digits", "40303265045", "FR", "FR40303265045"},
		{"greek prefix", "094259216", "GR", "EL094259216"},
		{"no country", "123", "", "123"},
		{"empty", "", "IT", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeVAT(tt.vat, tt.country); got != tt.want {
				t.Errorf("NormalizeVAT(%q, %q) = %q, want %q", tt.vat, tt.country, got, tt.want)
			}
		})
	}
}

func TestAccountCode(t *testing.T) {
	a := AccountCode("Bank")
	if len(a) != 6 {
		t.Fatalf("AccountCode() = %q, want 6 digits", a)
	}
	if b := AccountCode("  bank "); b != a {
		t.Errorf("AccountCode() not stable: %q vs %q", a, b)
	}
	if c := AccountCode("Cash"); c == a {
		t.Errorf("AccountCode() collision for distinct names: %q", c)
	}
}
