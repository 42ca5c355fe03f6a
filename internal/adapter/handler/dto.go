package handler

import (
	"github.com/shopspring/decimal"

	"github.com/rl1809/ingredient-market/internal/core/domain"
	"github.com/rl1809/ingredient-market/internal/core/service"
)

// Wire types shared by the HTTP and gRPC transports. Money and quantities
// travel as JSON numbers.

type QuoteRequest struct {
	IngredientID string  `json:"ingredient_id"`
	Quantity     float64 `json:"quantity"`
}

type QuoteResponse struct {
	QuoteID         string  `json:"quote_id"`
	IngredientID    string  `json:"ingredient_id"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	UnitOfMeasure   string  `json:"unit_of_measure"`
	PricePerUnit    float64 `json:"price_per_unit"`
	TotalPrice      float64 `json:"total_price"`
	Currency        string  `json:"currency"`
	AvailableStock  float64 `json:"available_stock"`
	DeliveryTime    int64   `json:"delivery_time"`
	UseByDate       int64   `json:"use_by_date"`
	PriceValidUntil int64   `json:"price_valid_until"`
}

type NegotiateRequest struct {
	QuoteID              string  `json:"quote_id"`
	ProposedPricePerUnit float64 `json:"proposed_price_per_unit"`
	Rationale            string  `json:"rationale"`
}

type NegotiateResponse struct {
	OriginalQuote        QuoteResponse  `json:"original_quote"`
	ProposedPricePerUnit float64        `json:"proposed_price_per_unit"`
	FinalPricePerUnit    float64        `json:"final_price_per_unit"`
	Accepted             bool           `json:"accepted"`
	Rationale            string         `json:"llm_rationale"`
	DecisionSource       string         `json:"decision_source"`
	NewQuote             *QuoteResponse `json:"new_quote"`
}

type BuyRequest struct {
	QuoteID                   string   `json:"quote_id,omitempty"`
	IngredientID              string   `json:"ingredient_id,omitempty"`
	Quantity                  float64  `json:"quantity"`
	MaxAcceptablePricePerUnit *float64 `json:"max_acceptable_price_per_unit,omitempty"`
	BusinessID                string   `json:"business_id,omitempty"`
}

type OrderItemResponse struct {
	IngredientID     string  `json:"ingredient_id"`
	Quantity         float64 `json:"quantity"`
	PricePerUnitPaid float64 `json:"price_per_unit_paid"`
	TotalPrice       float64 `json:"total_price"`
	UseByDate        int64   `json:"use_by_date"`
}

type OrderResponse struct {
	OrderID          string                       `json:"order_id"`
	BusinessID       *string                      `json:"business_id"`
	Items            map[string]OrderItemResponse `json:"items"`
	TotalCost        float64                      `json:"total_cost"`
	OrderPlacedAt    int64                        `json:"order_placed_at"`
	ExpectedDelivery int64                        `json:"expected_delivery"`
	Status           string                       `json:"status"`
	FailureReason    *string                      `json:"failure_reason"`
	QuoteID          *string                      `json:"quote_id"`
}

type OrderLookupRequest struct {
	OrderID string `json:"order_id"`
}

type BusinessOrdersRequest struct {
	BusinessID string `json:"business_id"`
}

type BusinessOrdersResponse struct {
	Orders []OrderResponse `json:"orders"`
}

type StockResponse struct {
	IngredientID   string  `json:"ingredient_id"`
	StockAvailable float64 `json:"stock_available"`
}

type IngredientResponse struct {
	IngredientID  string  `json:"ingredient_id"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	UnitOfMeasure string  `json:"unit_of_measure"`
	Currency      string  `json:"currency"`
	BasePrice     float64 `json:"base_price"`
	ShelfLife     int64   `json:"shelf_life"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func toQuoteResponse(q domain.PriceQuote) QuoteResponse {
	return QuoteResponse{
		QuoteID:         q.ID,
		IngredientID:    q.IngredientID,
		Name:            q.Name,
		Description:     q.Description,
		UnitOfMeasure:   q.UnitOfMeasure,
		PricePerUnit:    q.UnitPrice.InexactFloat64(),
		TotalPrice:      q.TotalPrice.InexactFloat64(),
		Currency:        q.Currency,
		AvailableStock:  q.AvailableStock.InexactFloat64(),
		DeliveryTime:    q.DeliveryTime,
		UseByDate:       q.ShelfLife,
		PriceValidUntil: q.ValidUntil,
	}
}

func toNegotiateResponse(o domain.NegotiationOutcome) NegotiateResponse {
	resp := NegotiateResponse{
		OriginalQuote:        toQuoteResponse(o.OriginalQuote),
		ProposedPricePerUnit: o.ProposedPrice.InexactFloat64(),
		FinalPricePerUnit:    o.FinalPrice.InexactFloat64(),
		Accepted:             o.Accepted,
		Rationale:            o.Rationale,
		DecisionSource:       string(o.Source),
	}
	if o.NewQuote != nil {
		nq := toQuoteResponse(o.NewQuote.PriceQuote)
		resp.NewQuote = &nq
	}
	return resp
}

func toOrderResponse(o domain.Order) OrderResponse {
	resp := OrderResponse{
		OrderID:          o.ID,
		BusinessID:       optional(o.BusinessID),
		Items:            map[string]OrderItemResponse{},
		TotalCost:        o.TotalCost.InexactFloat64(),
		OrderPlacedAt:    o.PlacedAt,
		ExpectedDelivery: o.ExpectedDelivery,
		Status:           string(o.Status),
		FailureReason:    optional(o.FailureReason),
		QuoteID:          optional(o.QuoteID),
	}
	if o.Item.IngredientID != "" {
		resp.Items[o.Item.IngredientID] = OrderItemResponse{
			IngredientID:     o.Item.IngredientID,
			Quantity:         o.Item.Quantity.InexactFloat64(),
			PricePerUnitPaid: o.Item.UnitPrice.InexactFloat64(),
			TotalPrice:       o.Item.TotalPrice.InexactFloat64(),
			UseByDate:        o.Item.UseBy,
		}
	}
	return resp
}

func toOrderResponses(orders []domain.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return out
}

func toIngredientResponse(it domain.Ingredient) IngredientResponse {
	return IngredientResponse{
		IngredientID:  it.ID,
		Name:          it.Name,
		Description:   it.Description,
		UnitOfMeasure: it.UnitOfMeasure,
		Currency:      it.Currency,
		BasePrice:     it.BasePrice.InexactFloat64(),
		ShelfLife:     it.ShelfLife,
	}
}

func (r BuyRequest) toService() service.BuyRequest {
	args := service.BuyRequest{
		QuoteID:      r.QuoteID,
		IngredientID: r.IngredientID,
		Quantity:     decimal.NewFromFloat(r.Quantity),
		BusinessID:   r.BusinessID,
	}
	if r.MaxAcceptablePricePerUnit != nil {
		limit := decimal.NewFromFloat(*r.MaxAcceptablePricePerUnit)
		args.MaxUnitPrice = &limit
	}
	return args
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
