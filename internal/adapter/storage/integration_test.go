package storage

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/ingredient-market/internal/adapter/clock"
	"github.com/rl1809/ingredient-market/internal/config"
	"github.com/rl1809/ingredient-market/internal/core/domain"
	"github.com/rl1809/ingredient-market/internal/core/pricing"
	"github.com/rl1809/ingredient-market/internal/core/service"
	"github.com/rl1809/ingredient-market/internal/port"
)

type integrationEnv struct {
	inventory *RedisInventory
	market    config.Market
	clock     *clock.SimulationClock
}

func setupIntegration(t *testing.T) *integrationEnv {
	client := getRedisClient(t)
	t.Cleanup(func() { client.Close() })

	return &integrationEnv{
		inventory: NewRedisInventory(client),
		market:    config.DefaultMarket(),
		clock:     clock.NewSimulationClock(0, zap.NewNop()),
	}
}

func (e *integrationEnv) newService(orders port.OrderRepository) *service.TradingService {
	return service.NewTradingService(service.Dependencies{
		Catalog:   e.market.Catalog,
		Pricer:    pricing.NewChain(e.market.Catalog, e.clock, e.market.Pricing),
		Inventory: e.inventory,
		Orders:    orders,
		Clock:     e.clock,
	}, service.Options{AuditQueueSize: 1000})
}

func TestIntegration_ConcurrentBuysAgainstSharedStock(t *testing.T) {
	env := setupIntegration(t)
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	const (
		ingredient   = "pre_packaged_sandwiches"
		initialStock = 10
		business     = "integration-buyer"
	)

	orders := NewMySQLOrderRepository(db)
	if err := orders.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	db.ExecContext(ctx, `DELETE FROM orders WHERE business_id = ?`, business)
	if err := env.inventory.SetStock(ctx, ingredient, decimal.NewFromInt(initialStock)); err != nil {
		t.Fatalf("SetStock: %v", err)
	}

	svc := env.newService(orders)

	var audited atomic.Int32
	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		for range svc.GetAuditQueue() {
			audited.Add(1)
		}
	}()

	var confirmed atomic.Int32
	var wg sync.WaitGroup
	totalRequests := 20
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o := svc.Buy(ctx, service.BuyRequest{IngredientID: ingredient, Quantity: decimal.NewFromInt(1), BusinessID: business})
			if o.Status == domain.OrderStatusConfirmed {
				confirmed.Add(1)
			}
		}()
	}
	wg.Wait()

	svc.Close()
	workers.Wait()

	if confirmed.Load() != initialStock {
		t.Errorf("expected %d confirmed buys, got %d", initialStock, confirmed.Load())
	}
	if audited.Load() != int32(totalRequests) {
		t.Errorf("expected %d audit events, got %d", totalRequests, audited.Load())
	}

	stock, _, err := env.inventory.GetStock(ctx, ingredient)
	if err != nil || !stock.IsZero() {
		t.Errorf("expected Redis stock 0, got %s (%v)", stock, err)
	}

	saved, err := orders.GetOrdersByBusiness(ctx, business)
	if err != nil {
		t.Fatalf("GetOrdersByBusiness: %v", err)
	}
	if len(saved) != initialStock {
		t.Errorf("expected %d orders in MySQL, got %d", initialStock, len(saved))
	}

	db.ExecContext(ctx, `DELETE FROM orders WHERE business_id = ?`, business)
}

func TestIntegration_RollbackOnSaveFailure(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()
	const (
		ingredient   = "espresso_beans"
		initialStock = 5
	)

	// a closed pool fails every write
	db, err := sql.Open("mysql", "root:root@tcp(localhost:1)/none")
	if err != nil {
		t.Fatal(err)
	}
	db.Close()

	if err := env.inventory.SetStock(ctx, ingredient, decimal.NewFromInt(initialStock)); err != nil {
		t.Fatalf("SetStock: %v", err)
	}
	svc := env.newService(NewMySQLOrderRepository(db))
	defer svc.Close()

	o := svc.Buy(ctx, service.BuyRequest{IngredientID: ingredient, Quantity: decimal.NewFromInt(2)})
	if o.Status != domain.OrderStatusSystemError || !o.TotalCost.IsZero() {
		t.Fatalf("expected FAILED_SYSTEM_ERROR with zero cost, got %s %s", o.Status, o.TotalCost)
	}

	stock, _, err := env.inventory.GetStock(ctx, ingredient)
	if err != nil || !stock.Equal(decimal.NewFromInt(initialStock)) {
		t.Errorf("expected Redis stock %d after rollback, got %s (%v)", initialStock, stock, err)
	}
}
