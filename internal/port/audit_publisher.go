package port

import (
	"context"

	"github.com/rl1809/ingredient-market/internal/core/domain"
)

// AuditPublisher receives every buy outcome, confirmed or failed.
type AuditPublisher interface {
	Publish(ctx context.Context, order domain.Order) error
	Close() error
}
