package tables

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// vatPrefixes maps country codes whose VAT prefix differs from the ISO code.
var vatPrefixes = map[string]string{
	"GR": "EL",
	"GB": "GB",
	"XI": "XI",
}

// VATPrefix returns the VAT prefix of a country code.
func VATPrefix(countryCode string) string {
	code := strings.ToUpper(strings.TrimSpace(countryCode))
	if p, ok := vatPrefixes[code]; ok {
		return p
	}
	return code
}

// NormalizeVAT removes separators from a VAT number and prefixes a bare
// number with its country. Italian numbers are zero-padded to 11 digits.
// A number that already carries a prefix is returned upper-cased.
func NormalizeVAT(vat, countryCode string) string {
	vat = strings.NewReplacer(" ", "", ".", "", "-", "").Replace(strings.TrimSpace(vat))
	vat = strings.ToUpper(vat)
	if vat == "" || !isDigits(vat) {
		return vat
	}
	prefix := VATPrefix(countryCode)
	if prefix == "IT" {
		n, err := strconv.ParseInt(vat, 10, 64)
		if err != nil {
			return vat
		}
		return fmt.Sprintf("IT%011d", n)
	}
	return prefix + vat
}

// AccountCode derives a stable 6-digit code from an account name, for
// rows that give a name but no code.
func AccountCode(name string) string {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(name))))
	return fmt.Sprintf("%06d", h.Sum32()%1000000)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
