// Package calc holds the guarded arithmetic and number formatting shared by
// alert rules and report aggregation.
package calc

import (
	"math"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Percent returns part/whole*100. ok is false when whole is not positive or
// the result is not a finite number; callers treat that as "no signal".
func Percent(part, whole float64) (pct float64, ok bool) {
	if whole <= 0 || math.IsNaN(whole) || math.IsInf(whole, 0) {
		return 0, false
	}
	pct = part / whole * 100
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return 0, false
	}
	return pct, true
}

// Tier maps v onto three levels: above high, above medium, otherwise low.
func Tier[T any](v, medium, high float64, low, mid, top T) T {
	switch {
	case v > high:
		return top
	case v > medium:
		return mid
	default:
		return low
	}
}

// Sum adds amounts exactly and returns the total as a float.
func Sum(amounts []float64) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	f, _ := total.Float64()
	return f
}

// Mean returns the exact average of amounts, or 0 for an empty slice.
func Mean(amounts []float64) float64 {
	if len(amounts) == 0 {
		return 0
	}
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	f, _ := total.Div(decimal.NewFromInt(int64(len(amounts)))).Float64()
	return f
}

var printer = message.NewPrinter(language.AmericanEnglish)

// Currency formats v as whole US dollars with thousands separators, e.g. "$1,250,000".
func Currency(v float64) string {
	return printer.Sprintf("$%d", int64(math.Round(v)))
}
