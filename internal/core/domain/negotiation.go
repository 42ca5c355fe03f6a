package domain

import "github.com/shopspring/decimal"

// NegotiationContext is everything an oracle sees when deciding a counter-offer.
type NegotiationContext struct {
	Quote         PriceQuote
	BasePrice     decimal.Decimal
	ProposedPrice decimal.Decimal
	Rationale     string
	Now           int64
}

// Decision is an oracle's verdict on a counter-offer.
type Decision struct {
	FinalUnitPrice decimal.Decimal
	Accepted       bool
	Rationale      string
}

type DecisionSource string

const (
	DecisionSourceOracle   DecisionSource = "oracle"
	DecisionSourceFallback DecisionSource = "fallback"
)

type NegotiationOutcome struct {
	OriginalQuote PriceQuote
	ProposedPrice decimal.Decimal
	FinalPrice    decimal.Decimal
	Accepted      bool
	Rationale     string
	Source        DecisionSource
	NewQuote      *NegotiatedQuote
}
