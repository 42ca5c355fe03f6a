package domain

import "github.com/shopspring/decimal"

// PriceQuote is a time-bounded price commitment for an ingredient and quantity.
type PriceQuote struct {
	ID             string
	IngredientID   string
	Name           string
	Description    string
	UnitOfMeasure  string
	Currency       string
	Quantity       decimal.Decimal
	UnitPrice      decimal.Decimal
	TotalPrice     decimal.Decimal
	AvailableStock decimal.Decimal
	ShelfLife      int64
	ValidUntil     int64
	DeliveryTime   int64
}

// Expired reports whether the quote can no longer be used at time now.
func (q PriceQuote) Expired(now int64) bool {
	return now >= q.ValidUntil
}

// NegotiatedQuote is the revised form of a quote. It keeps the originating
// quote's id and expiry; UnitPrice and TotalPrice hold the negotiated values.
type NegotiatedQuote struct {
	PriceQuote
	OriginalPrice decimal.Decimal
	NegotiatedAt  int64
	Rationale     string
}
