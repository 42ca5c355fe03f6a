package port

import (
	"context"

	"github.com/rl1809/ingredient-market/internal/core/domain"
)

type OrderRepository interface {
	// SaveOrder persists a confirmed order
	SaveOrder(ctx context.Context, order domain.Order) error

	// GetOrder returns nil when the order does not exist
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// GetOrdersByBusiness lists every persisted order for a business
	GetOrdersByBusiness(ctx context.Context, businessID string) ([]domain.Order, error)

	// Reset removes every persisted order
	Reset(ctx context.Context) error
}
