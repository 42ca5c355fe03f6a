package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/ingredient-market/internal/adapter/clock"
	"github.com/rl1809/ingredient-market/internal/adapter/storage"
	"github.com/rl1809/ingredient-market/internal/config"
	"github.com/rl1809/ingredient-market/internal/core/domain"
	"github.com/rl1809/ingredient-market/internal/core/pricing"
	"github.com/rl1809/ingredient-market/internal/core/service"
)

const (
	ingredientID  = "fresh_fruit"
	initialStock  = 20
	totalRequests = 50
	queueSize     = 100
)

func main() {
	ctx := context.Background()
	logger := zap.NewNop()

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect redis: %v\n", err)
		os.Exit(1)
	}
	defer rdb.Close()

	market := config.DefaultMarket()
	inventory := storage.NewRedisInventory(rdb)
	if err := inventory.Seed(ctx, market.Catalog); err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed stock: %v\n", err)
		os.Exit(1)
	}
	if err := inventory.SetStock(ctx, ingredientID, decimal.NewFromInt(initialStock)); err != nil {
		fmt.Fprintf(os.Stderr, "failed to set stock: %v\n", err)
		os.Exit(1)
	}

	simClock := clock.NewSimulationClock(0, logger)
	tradingService := service.NewTradingService(service.Dependencies{
		Catalog:   market.Catalog,
		Pricer:    pricing.NewChain(market.Catalog, simClock, market.Pricing),
		Inventory: inventory,
		Orders:    storage.NewMemoryOrderRepository(),
		Clock:     simClock,
	}, service.Options{AuditQueueSize: queueSize, Logger: logger})
	defer tradingService.Close()

	// Drain the audit queue in background
	go func() {
		for range tradingService.GetAuditQueue() {
		}
	}()

	// Counters
	var successCount atomic.Int32
	var failCount atomic.Int32
	var pricedAboveZero atomic.Int32

	// Spawn concurrent buys
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			order := tradingService.Buy(ctx, service.BuyRequest{
				IngredientID: ingredientID,
				Quantity:     decimal.NewFromInt(1),
				BusinessID:   fmt.Sprintf("business-%d", n),
			})
			if order.Status == domain.OrderStatusConfirmed {
				successCount.Add(1)
				return
			}
			failCount.Add(1)
			if !order.TotalCost.IsZero() {
				pricedAboveZero.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	fail := failCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Ingredient:       %s\n", ingredientID)
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Confirmed:        %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	if success == initialStock && fail == totalRequests-initialStock {
		fmt.Printf("PASS: Exactly %d buys confirmed, %d failed\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d confirmed/%d failed, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, fail)
	}
	if n := pricedAboveZero.Load(); n > 0 {
		fmt.Printf("FAIL: %d failed orders carried a cost\n", n)
	}

	// Verify final stock in Redis
	finalStock, _, err := inventory.GetStock(ctx, ingredientID)
	if err != nil {
		fmt.Printf("FAIL: could not read final stock: %v\n", err)
		return
	}
	fmt.Printf("Final Redis Stock: %s\n", finalStock)

	if finalStock.IsZero() {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected stock 0, got %s\n", finalStock)
	}
}
