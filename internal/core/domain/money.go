package domain

import "github.com/shopspring/decimal"

// CurrencyPlaces is the precision every price and total is rounded to.
const CurrencyPlaces = 2

// RoundPrice rounds to currency precision, half away from zero. All prices in
// the system are non-negative so this is plain half-up rounding.
func RoundPrice(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyPlaces)
}

// LineTotal returns round(unit × quantity) at currency precision.
func LineTotal(unitPrice, quantity decimal.Decimal) decimal.Decimal {
	return RoundPrice(unitPrice.Mul(quantity))
}

// QuantityPlaces is the finest quantity the stock ledgers can track.
const QuantityPlaces = 3

// ValidQuantity reports whether q is positive and representable at
// QuantityPlaces.
func ValidQuantity(q decimal.Decimal) bool {
	return q.IsPositive() && q.Shift(QuantityPlaces).IsInteger()
}
