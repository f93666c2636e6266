package finge

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount wraps decimal.Decimal for prices and volumes.
// JSON marshaling outputs a float64 number (compatible with the mobile app),
// while internal arithmetic uses precise decimal operations.
type Amount struct {
	decimal.Decimal
}

// MarshalJSON outputs as a JSON number (not a string).
func (a Amount) MarshalJSON() ([]byte, error) {
	f, _ := a.Round(4).Float64()
	return []byte(strconv.FormatFloat(f, 'f', -1, 64)), nil
}

// UnmarshalJSON accepts both JSON numbers and quoted strings.
func (a *Amount) UnmarshalJSON(data []byte) error {
	return a.Decimal.UnmarshalJSON(data)
}

// NewAmount creates an Amount from a float64.
func NewAmount(f float64) Amount {
	return Amount{decimal.NewFromFloat(f)}
}

var (
	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
	billion  = decimal.NewFromInt(1_000_000_000)
	trillion = decimal.NewFromInt(1_000_000_000_000)
)

// parseDisplayNumber reads numbers as quote APIs print them:
// "$227.48", "-1.22", "+0.54%", "44,123,456". "N/A" and blanks are not numbers.
func parseDisplayNumber(s string) (decimal.Decimal, bool) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" || strings.EqualFold(cleaned, "N/A") || cleaned == "--" {
		return decimal.Zero, false
	}
	cleaned = strings.NewReplacer("$", "", ",", "", "%", "", "+", "", " ", "").Replace(cleaned)
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// formatPrice renders a price with two decimals.
func formatPrice(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// formatSigned renders a change with an explicit sign, e.g. "+1.22".
func formatSigned(d decimal.Decimal) string {
	if d.IsNegative() {
		return d.StringFixed(2)
	}
	return "+" + d.StringFixed(2)
}

// formatChange renders "+1.22 (1.16%)" from an absolute and percent change.
func formatChange(change, percent decimal.Decimal) string {
	return formatSigned(change) + " (" + percent.Abs().StringFixed(2) + "%)"
}

// abbreviate renders large magnitudes the way swipe cards show them:
// 827.5M, 2.95T, 12.3K.
func abbreviate(d decimal.Decimal) string {
	abs := d.Abs()
	switch {
	case abs.GreaterThanOrEqual(trillion):
		return d.Div(trillion).StringFixed(2) + "T"
	case abs.GreaterThanOrEqual(billion):
		return d.Div(billion).StringFixed(2) + "B"
	case abs.GreaterThanOrEqual(million):
		return d.Div(million).StringFixed(1) + "M"
	case abs.GreaterThanOrEqual(thousand):
		return d.Div(thousand).StringFixed(1) + "K"
	default:
		return d.Round(0).String()
	}
}
