package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/ingredient-market/internal/core/domain"
	"github.com/rl1809/ingredient-market/internal/port"
)

const auditPublishTimeout = 5 * time.Second

// RunAuditWorker publishes buy outcomes from queue until it is closed.
func RunAuditWorker(id int, queue <-chan domain.Order, publisher port.AuditPublisher, logger *zap.Logger) {
	for order := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), auditPublishTimeout)

		if err := publisher.Publish(ctx, order); err != nil {
			logger.Error("failed to publish order event",
				zap.Int("worker", id),
				zap.String("order_id", order.ID),
				zap.String("status", string(order.Status)),
				zap.Error(err),
			)
		} else {
			logger.Debug("published order event", zap.Int("worker", id), zap.String("order_id", order.ID))
		}

		cancel()
	}
}
