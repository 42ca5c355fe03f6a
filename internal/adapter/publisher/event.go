package publisher

import (
	"github.com/rl1809/ingredient-market/internal/core/domain"
)

const EventTypeBuyCompleted = "market.buy.completed"

// OrderEvent is the audit record emitted for every buy attempt, confirmed or
// not.
type OrderEvent struct {
	Type             string  `json:"type"`
	OrderID          string  `json:"order_id"`
	BusinessID       string  `json:"business_id,omitempty"`
	QuoteID          string  `json:"quote_id,omitempty"`
	IngredientID     string  `json:"ingredient_id,omitempty"`
	Quantity         string  `json:"quantity"`
	UnitPrice        string  `json:"price_per_unit_paid"`
	TotalCost        string  `json:"total_cost"`
	PlacedAt         int64   `json:"order_placed_at"`
	ExpectedDelivery int64   `json:"expected_delivery"`
	UseBy            int64   `json:"use_by_date"`
	Status           string  `json:"status"`
	FailureReason    *string `json:"failure_reason,omitempty"`
}

func NewOrderEvent(o domain.Order) OrderEvent {
	e := OrderEvent{
		Type:             EventTypeBuyCompleted,
		OrderID:          o.ID,
		BusinessID:       o.BusinessID,
		QuoteID:          o.QuoteID,
		IngredientID:     o.Item.IngredientID,
		Quantity:         o.Item.Quantity.String(),
		UnitPrice:        o.Item.UnitPrice.StringFixed(domain.CurrencyPlaces),
		TotalCost:        o.TotalCost.StringFixed(domain.CurrencyPlaces),
		PlacedAt:         o.PlacedAt,
		ExpectedDelivery: o.ExpectedDelivery,
		UseBy:            o.Item.UseBy,
		Status:           string(o.Status),
	}
	if o.FailureReason != "" {
		reason := o.FailureReason
		e.FailureReason = &reason
	}
	return e
}
