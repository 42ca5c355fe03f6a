package storage

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rl1809/ingredient-market/internal/core/domain"
)

// orderRow is the flat column layout shared by the SQL order repositories.
// Decimal columns travel as text so neither driver has to agree on a numeric
// representation.
type orderRow struct {
	ID               string
	BusinessID       string
	QuoteID          string
	IngredientID     string
	Quantity         string
	UnitPrice        string
	TotalPrice       string
	UseBy            int64
	TotalCost        string
	PlacedAt         int64
	ExpectedDelivery int64
	Status           string
	FailureReason    string
}

func newOrderRow(o domain.Order) orderRow {
	return orderRow{
		ID:               o.ID,
		BusinessID:       o.BusinessID,
		QuoteID:          o.QuoteID,
		IngredientID:     o.Item.IngredientID,
		Quantity:         o.Item.Quantity.String(),
		UnitPrice:        o.Item.UnitPrice.String(),
		TotalPrice:       o.Item.TotalPrice.String(),
		UseBy:            o.Item.UseBy,
		TotalCost:        o.TotalCost.String(),
		PlacedAt:         o.PlacedAt,
		ExpectedDelivery: o.ExpectedDelivery,
		Status:           string(o.Status),
		FailureReason:    o.FailureReason,
	}
}

func (r orderRow) args() []any {
	return []any{
		r.ID, r.BusinessID, r.QuoteID, r.IngredientID,
		r.Quantity, r.UnitPrice, r.TotalPrice, r.UseBy,
		r.TotalCost, r.PlacedAt, r.ExpectedDelivery, r.Status, r.FailureReason,
	}
}

func (r *orderRow) dest() []any {
	return []any{
		&r.ID, &r.BusinessID, &r.QuoteID, &r.IngredientID,
		&r.Quantity, &r.UnitPrice, &r.TotalPrice, &r.UseBy,
		&r.TotalCost, &r.PlacedAt, &r.ExpectedDelivery, &r.Status, &r.FailureReason,
	}
}

func (r orderRow) toDomain() (domain.Order, error) {
	var (
		o   domain.Order
		err error
	)
	parse := func(field, s string) decimal.Decimal {
		if err != nil {
			return decimal.Zero
		}
		var d decimal.Decimal
		d, err = decimal.NewFromString(s)
		if err != nil {
			err = fmt.Errorf("order %s: parse %s: %w", r.ID, field, err)
		}
		return d
	}

	o = domain.Order{
		ID:         r.ID,
		BusinessID: r.BusinessID,
		QuoteID:    r.QuoteID,
		Item: domain.OrderItem{
			IngredientID: r.IngredientID,
			Quantity:     parse("quantity", r.Quantity),
			UnitPrice:    parse("unit_price", r.UnitPrice),
			TotalPrice:   parse("total_price", r.TotalPrice),
			UseBy:        r.UseBy,
		},
		TotalCost:        parse("total_cost", r.TotalCost),
		PlacedAt:         r.PlacedAt,
		ExpectedDelivery: r.ExpectedDelivery,
		Status:           domain.OrderStatus(r.Status),
		FailureReason:    r.FailureReason,
	}
	return o, err
}
