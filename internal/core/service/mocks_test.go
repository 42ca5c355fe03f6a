package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/rl1809/ingredient-market/internal/core/domain"
	"github.com/rl1809/ingredient-market/internal/core/pricing"
)

type fakeClock struct {
	now atomic.Int64
}

func (c *fakeClock) Now() int64  { return c.now.Load() }
func (c *fakeClock) Set(t int64) { c.now.Store(t) }
func (c *fakeClock) Add(d int64) { c.now.Add(d) }

// Mock InventoryLedger
type mockInventory struct {
	mu         sync.Mutex
	stock      map[string]decimal.Decimal
	refuse     bool // Consume reports a lost race
	getErr     error
	restocked  decimal.Decimal
	consumeHit int
}

func newMockInventory(stock map[string]int64) *mockInventory {
	m := &mockInventory{stock: make(map[string]decimal.Decimal)}
	for id, qty := range stock {
		m.stock[id] = decimal.NewFromInt(qty)
	}
	return m
}

func (m *mockInventory) GetStock(_ context.Context, id string) (decimal.Decimal, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return decimal.Zero, false, m.getErr
	}
	s, ok := m.stock[id]
	return s, ok, nil
}

func (m *mockInventory) Consume(_ context.Context, id string, qty decimal.Decimal) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consumeHit++
	if m.refuse {
		return false, nil
	}
	s, ok := m.stock[id]
	if !ok || s.LessThan(qty) {
		return false, nil
	}
	m.stock[id] = s.Sub(qty)
	return true, nil
}

func (m *mockInventory) Restock(_ context.Context, id string, qty decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[id] = m.stock[id].Add(qty)
	m.restocked = m.restocked.Add(qty)
	return nil
}

func (m *mockInventory) level(id string) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[id]
}

// Mock OrderRepository
type mockOrders struct {
	mu      sync.Mutex
	orders  map[string]domain.Order
	saveErr error
}

func newMockOrders() *mockOrders {
	return &mockOrders{orders: make(map[string]domain.Order)}
}

func (m *mockOrders) SaveOrder(_ context.Context, o domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.orders[o.ID] = o
	return nil
}

func (m *mockOrders) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (m *mockOrders) GetOrdersByBusiness(_ context.Context, business string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if o.BusinessID == business {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrders) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = make(map[string]domain.Order)
	return nil
}

func (m *mockOrders) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// fixedPricer quotes a constant unit price per ingredient.
type fixedPricer struct {
	clock  *fakeClock
	prices map[string]decimal.Decimal
	calls  atomic.Int32
}

func (p *fixedPricer) Price(id string, _ decimal.Decimal) (pricing.Price, bool) {
	p.calls.Add(1)
	price, ok := p.prices[id]
	if !ok {
		return pricing.Price{}, false
	}
	return pricing.Price{UnitPrice: price, ValidUntil: p.clock.Now() + pricing.QuoteLifetime}, true
}

type oracleFunc func(ctx context.Context, nctx domain.NegotiationContext) (domain.Decision, error)

func (f oracleFunc) Decide(ctx context.Context, nctx domain.NegotiationContext) (domain.Decision, error) {
	return f(ctx, nctx)
}

type mockPublisher struct {
	mu     sync.Mutex
	orders []domain.Order
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, o domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = append(m.orders, o)
	return m.err
}

func (m *mockPublisher) Close() error { return nil }

func (m *mockPublisher) published() []domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Order(nil), m.orders...)
}

var errBoom = errors.New("boom")

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
