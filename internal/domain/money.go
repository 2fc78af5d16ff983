package domain

import "github.com/shopspring/decimal"

// MoneyTolerance is one minor currency unit; aggregate reconciliation must
// hold within this bound
var MoneyTolerance = decimal.New(1, -2)

// RoundMoney rounds to the minor currency unit (two decimal places)
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// WithinTolerance reports whether a and b differ by at most one minor unit
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(MoneyTolerance)
}
