package compression

import (
	"unicode"
	"unicode/utf8"

	"github.com/jonathan/property-analyzer/internal/types"
)

// MeasureSize returns the size of s in the given unit.
//
// Token sizes are estimated as one token per four ASCII characters plus one
// token per non-ASCII character. The estimate never decreases as s grows,
// which the truncation search relies on.
func MeasureSize(s string, unit types.SizeUnit) int {
	if unit != types.UnitTokens {
		return utf8.RuneCountInString(s)
	}
	ascii, other := 0, 0
	for _, r := range s {
		if r <= unicode.MaxASCII {
			ascii++
		} else {
			other++
		}
	}
	return (ascii+3)/4 + other
}
