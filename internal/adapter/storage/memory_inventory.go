package storage

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rl1809/ingredient-market/internal/core/domain"
)

type stockCell struct {
	mu  sync.Mutex
	qty decimal.Decimal
}

// MemoryInventory keeps stock in process. Each ingredient has its own lock so
// check-and-consume is linearizable per ingredient.
type MemoryInventory struct {
	cells map[string]*stockCell
}

// NewMemoryInventory seeds stock from the catalog's opening balances.
func NewMemoryInventory(catalog *domain.Catalog) *MemoryInventory {
	items := catalog.List()
	m := &MemoryInventory{cells: make(map[string]*stockCell, len(items))}
	for _, it := range items {
		m.cells[it.ID] = &stockCell{qty: it.Stock}
	}
	return m
}

func (m *MemoryInventory) GetStock(_ context.Context, ingredientID string) (decimal.Decimal, bool, error) {
	c, ok := m.cells[ingredientID]
	if !ok {
		return decimal.Zero, false, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.qty, true, nil
}

func (m *MemoryInventory) Consume(_ context.Context, ingredientID string, quantity decimal.Decimal) (bool, error) {
	c, ok := m.cells[ingredientID]
	if !ok || !quantity.IsPositive() {
		return false, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.qty.LessThan(quantity) {
		return false, nil
	}
	c.qty = c.qty.Sub(quantity)
	return true, nil
}

func (m *MemoryInventory) Restock(_ context.Context, ingredientID string, quantity decimal.Decimal) error {
	c, ok := m.cells[ingredientID]
	if !ok {
		return domain.ErrIngredientNotFound
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.qty = c.qty.Add(quantity)
	return nil
}
