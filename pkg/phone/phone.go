// Package phone normalises phone numbers for duplicate detection.
package phone

import (
	"strings"
	"unicode"

	"github.com/ttacon/libphonenumber"
)

// MatchDigits is how many trailing digits identify a number across formats.
const MatchDigits = 9

// Number is a normalised phone number.
type Number struct {
	// E164 is empty when the input could not be parsed as a valid number.
	E164 string
	// MatchKey is the trailing MatchDigits digits, or all digits when shorter.
	MatchKey string
}

// Normalize parses raw in the context of defaultRegion (ISO 3166 alpha-2).
// Unparseable input still yields a MatchKey from its digits.
func Normalize(raw, defaultRegion string) Number {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Number{}
	}

	var n Number
	digits := Digits(raw)
	if parsed, err := libphonenumber.Parse(raw, defaultRegion); err == nil && libphonenumber.IsValidNumber(parsed) {
		n.E164 = libphonenumber.Format(parsed, libphonenumber.E164)
		digits = libphonenumber.GetNationalSignificantNumber(parsed)
	}

	if len(digits) > MatchDigits {
		digits = digits[len(digits)-MatchDigits:]
	}
	n.MatchKey = digits
	return n
}

// Digits strips everything except ASCII digits.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < unicode.MaxASCII && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
