package domain

import "github.com/shopspring/decimal"

type OrderStatus string

const (
	OrderStatusConfirmed          OrderStatus = "CONFIRMED"
	OrderStatusInvalidRequest     OrderStatus = "FAILED_INVALID_REQUEST"
	OrderStatusInvalidItem        OrderStatus = "FAILED_INVALID_ITEM"
	OrderStatusIngredientMismatch OrderStatus = "FAILED_INVALID_QUOTE:INGREDIENT_MISMATCH"
	OrderStatusQuoteExpired       OrderStatus = "FAILED_INVALID_QUOTE:QUOTE_EXPIRED"
	OrderStatusPriceTooHigh       OrderStatus = "FAILED_PRICE_TOO_HIGH"
	OrderStatusNoStock            OrderStatus = "FAILED_NO_STOCK"
	OrderStatusSystemError        OrderStatus = "FAILED_SYSTEM_ERROR"
)

// OrderStatuses lists every status a buy attempt can end in.
var OrderStatuses = []OrderStatus{
	OrderStatusConfirmed,
	OrderStatusInvalidRequest,
	OrderStatusInvalidItem,
	OrderStatusIngredientMismatch,
	OrderStatusQuoteExpired,
	OrderStatusPriceTooHigh,
	OrderStatusNoStock,
	OrderStatusSystemError,
}

func (s OrderStatus) Confirmed() bool {
	return s == OrderStatusConfirmed
}

type OrderItem struct {
	IngredientID string
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	TotalPrice   decimal.Decimal
	UseBy        int64
}

// Order is the terminal record of one buy attempt. It is never mutated after
// creation.
type Order struct {
	ID               string
	BusinessID       string
	QuoteID          string
	Item             OrderItem
	TotalCost        decimal.Decimal
	PlacedAt         int64
	ExpectedDelivery int64
	Status           OrderStatus
	FailureReason    string
}
