package port

import (
	"context"

	"github.com/shopspring/decimal"
)

type InventoryLedger interface {
	// GetStock returns current stock; ok is false for an unknown ingredient
	GetStock(ctx context.Context, ingredientID string) (qty decimal.Decimal, ok bool, err error)

	// Consume atomically decreases stock, returns false if unknown or insufficient
	Consume(ctx context.Context, ingredientID string, quantity decimal.Decimal) (bool, error)

	// Restock returns consumed stock (rollback when an order cannot be persisted)
	Restock(ctx context.Context, ingredientID string, quantity decimal.Decimal) error
}
