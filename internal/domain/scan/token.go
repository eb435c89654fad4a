// Package scan turns raw scanner or keyboard input into catalog matches.
//
// A scan token follows the grammar CODE or CODE-PRICE. The first '-' splits
// the token; everything before it is the product code and everything after
// it is a declared total price. Product codes therefore must not contain
// '-': a code such as "AB-12" is always read as code "AB" priced 12.
package scan

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Delimiter separates the code from the declared total price.
const Delimiter = '-'

// Token is a decoded scan.
type Token struct {
	// Raw is the trimmed input.
	Raw string
	// Code is the product identifier part.
	Code string
	// DeclaredTotal is the price embedded in the token, if any. It is the
	// total for the scanned item, not its unit price.
	DeclaredTotal decimal.NullDecimal
}

// HasDeclaredTotal reports whether the token carries a price.
func (t Token) HasDeclaredTotal() bool {
	return t.DeclaredTotal.Valid
}

// ParseToken decodes raw. A malformed price suffix is not an error: the whole
// input is then treated as a bare code.
func ParseToken(raw string) Token {
	raw = strings.TrimSpace(raw)
	bare := Token{Raw: raw, Code: raw}

	i := strings.IndexByte(raw, Delimiter)
	if i < 0 {
		return bare
	}

	price, ok := parsePrice(raw[i+1:])
	if !ok {
		return bare
	}
	return Token{
		Raw:           raw,
		Code:          strings.TrimSpace(raw[:i]),
		DeclaredTotal: decimal.NewNullDecimal(price),
	}
}

// parsePrice keeps only digits and dots before parsing.
func parsePrice(s string) (decimal.Decimal, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, s)
	if cleaned == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}
