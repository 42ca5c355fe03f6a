package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/rl1809/ingredient-market/internal/core/domain"
)

type MemoryOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{orders: make(map[string]domain.Order)}
}

func (r *MemoryOrderRepository) SaveOrder(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = order
	return nil
}

func (r *MemoryOrderRepository) GetOrder(_ context.Context, orderID string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[orderID]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (r *MemoryOrderRepository) GetOrdersByBusiness(_ context.Context, businessID string) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Order, 0)
	for _, o := range r.orders {
		if o.BusinessID == businessID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PlacedAt != out[j].PlacedAt {
			return out[i].PlacedAt < out[j].PlacedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryOrderRepository) Reset(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = make(map[string]domain.Order)
	return nil
}
