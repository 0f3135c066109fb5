// Package render turns controller state into presentation models for the
// HTML dashboard and the CLI.
package render

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Money formats a dollar amount with thousands separators and two decimals.
func Money(v float64) string {
	return "$" + humanize.FormatFloat("#,###.##", v)
}

// Amount formats a dollar amount with up to three significant decimals.
func Amount(v float64) string {
	return "$" + humanize.CommafWithDigits(v, 3)
}

// Number formats v without trailing zeros (2 -> "2", 2.5 -> "2.5").
func Number(v float64) string {
	return decimal.NewFromFloat(v).String()
}

// RiskReward formats a ratio as "1:X".
func RiskReward(ratio float64) string {
	return "1:" + Number(ratio)
}

// Whole rounds half away from zero and drops the fraction.
func Whole(v float64) string {
	return fmt.Sprintf("%.0f", math.Round(v))
}

// Percent2 formats v with exactly two decimals.
func Percent2(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
