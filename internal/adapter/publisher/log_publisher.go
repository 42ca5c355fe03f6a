package publisher

import (
	"context"

	"go.uber.org/zap"

	"github.com/rl1809/ingredient-market/internal/core/domain"
)

// LogPublisher records order events in the service log. It is used when no
// broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger.Named("audit")}
}

func (p *LogPublisher) Publish(_ context.Context, order domain.Order) error {
	e := NewOrderEvent(order)
	fields := []zap.Field{
		zap.String("order_id", e.OrderID),
		zap.String("status", e.Status),
		zap.String("ingredient_id", e.IngredientID),
		zap.String("quantity", e.Quantity),
		zap.String("total_cost", e.TotalCost),
		zap.Int64("order_placed_at", e.PlacedAt),
	}
	if e.BusinessID != "" {
		fields = append(fields, zap.String("business_id", e.BusinessID))
	}
	if e.FailureReason != nil {
		fields = append(fields, zap.String("failure_reason", *e.FailureReason))
	}
	p.logger.Info("Order event", fields...)
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
