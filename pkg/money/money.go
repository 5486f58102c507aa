// Package money holds the fixed-point rules shared by the ledger and payouts.
// Every amount is rounded to two fractional digits, half away from zero.
package money

import "github.com/shopspring/decimal"

const Places = 2

var hundred = decimal.NewFromInt(100)

// Round rounds d to the ledger precision.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Percent returns amount * rate / 100 at ledger precision.
func Percent(amount, rate decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(rate).Div(hundred))
}

// Sum adds the values and rounds once.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return Round(total)
}

// IsPositive reports whether d is strictly greater than zero after rounding.
func IsPositive(d decimal.Decimal) bool {
	return Round(d).IsPositive()
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
