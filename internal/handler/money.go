package handler

import (
	"github.com/shopspring/decimal"
)

// parseAmount converts a decimal amount string ("150.25") into minor units.
// Anything with more than two fractional digits, zero, negative, or beyond
// int64 minor units is rejected. IntPart silently truncates out-of-range
// values, so the range check must come first.
func parseAmount(s string) (int64, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	if !d.IsPositive() {
		return 0, false
	}
	minor := d.Shift(2)
	if !minor.IsInteger() {
		return 0, false
	}
	if !minor.BigInt().IsInt64() {
		return 0, false
	}
	return minor.IntPart(), true
}

// formatAmount renders minor units back as a two-decimal string.
func formatAmount(v int64) string {
	return decimal.New(v, -2).StringFixed(2)
}
