// Package units converts between human decimal amounts and smallest-unit
// integers. Only the CLI uses it; the core compares integers.
package units

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ToSmallest parses s (for example "12.5") into smallest units of a token
// with the given decimals. More fractional digits than decimals is an
// error rather than a silent truncation.
func ToSmallest(s string, decimals int32) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("amount %q: not a number", s)
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %q: more than %d decimals", s, decimals)
	}
	return scaled.BigInt(), nil
}

// FromSmallest renders v with the given decimals, trimming trailing zeros.
func FromSmallest(v *big.Int, decimals int32) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -decimals).String()
}

// Fixed renders v rounded to places fractional digits.
func Fixed(v *big.Int, decimals, places int32) string {
	if v == nil {
		return decimal.Zero.StringFixed(places)
	}
	return decimal.NewFromBigInt(v, -decimals).StringFixed(places)
}
