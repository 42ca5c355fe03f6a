package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/ingredient-market/internal/adapter/clock"
	"github.com/rl1809/ingredient-market/internal/adapter/handler"
	"github.com/rl1809/ingredient-market/internal/adapter/oracle"
	"github.com/rl1809/ingredient-market/internal/adapter/publisher"
	"github.com/rl1809/ingredient-market/internal/adapter/storage"
	"github.com/rl1809/ingredient-market/internal/config"
	"github.com/rl1809/ingredient-market/internal/core/domain"
	"github.com/rl1809/ingredient-market/internal/core/pricing"
	"github.com/rl1809/ingredient-market/internal/core/service"
	"github.com/rl1809/ingredient-market/internal/observability"
	"github.com/rl1809/ingredient-market/internal/port"
)

const serviceName = "ingredient-market"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.SetupTracing(ctx, serviceName, cfg.OtelEndpoint)
	if err != nil {
		logger.Warn("Tracing disabled", zap.Error(err))
	}

	market := config.DefaultMarket().WithDemandWindow(cfg.DemandWindow)

	// Initialize storage
	orders, closeOrders, err := openOrderRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeOrders()

	inventory, closeInventory, err := openInventory(ctx, cfg, market.Catalog, logger)
	if err != nil {
		return err
	}
	defer closeInventory()

	// Initialize clock
	var (
		marketClock port.Clock
		localClock  *clock.SimulationClock
	)
	if cfg.ClockURL != "" {
		remote := clock.NewRemoteClock(cfg.ClockURL, cfg.ClockPollInterval, logger)
		if err := remote.Sync(ctx); err != nil {
			logger.Warn("Initial clock sync failed, starting at 0", zap.String("url", cfg.ClockURL), zap.Error(err))
		}
		go remote.Run(ctx)
		marketClock = remote
		logger.Info("Following remote clock", zap.String("url", cfg.ClockURL))
	} else {
		localClock = clock.NewSimulationClock(0, logger)
		marketClock = localClock
		logger.Info("Using local simulation clock")
	}

	// Initialize negotiation oracle
	var negotiationOracle port.NegotiationOracle
	if cfg.OracleURL != "" {
		negotiationOracle = oracle.NewLLMOracle(cfg.OracleURL, cfg.OracleAPIKey, cfg.OracleModel,
			&http.Client{Timeout: cfg.OracleTimeout}, logger)
		logger.Info("Negotiation oracle enabled", zap.String("url", cfg.OracleURL))
	}

	// Initialize service
	tradingService := service.NewTradingService(service.Dependencies{
		Catalog:   market.Catalog,
		Pricer:    pricing.NewChain(market.Catalog, marketClock, market.Pricing),
		Inventory: inventory,
		Orders:    orders,
		Clock:     marketClock,
		Oracle:    negotiationOracle,
	}, service.Options{
		QuoteCleanupThreshold: cfg.QuoteCleanupThreshold,
		OracleTimeout:         cfg.OracleTimeout,
		AuditQueueSize:        cfg.AuditQueueSize,
		Logger:                logger,
	})

	// Start audit worker pool
	auditPublisher := newAuditPublisher(cfg, logger)
	var wg sync.WaitGroup
	for i := 0; i < cfg.AuditWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			service.RunAuditWorker(id, tradingService.GetAuditQueue(), auditPublisher, logger)
		}(i)
	}
	logger.Info("Started audit workers", zap.Int("count", cfg.AuditWorkers))

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	handler.NewGRPCHandler(tradingService).Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Initialize HTTP server
	router := chi.NewRouter()
	router.Mount("/", handler.NewHTTPHandler(tradingService, cfg.PersistentOrders(), logger).Routes())
	if localClock != nil {
		router.Mount("/clock", handler.NewClockHandler(localClock, logger).Routes())
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	if localClock != nil {
		localClock.StopAuto()
	}
	cancel()

	// Close audit queue and wait for workers
	tradingService.Close()
	wg.Wait()
	if err := auditPublisher.Close(); err != nil {
		logger.Warn("Audit publisher close", zap.Error(err))
	}
	logger.Info("Audit workers stopped")

	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("Tracer shutdown", zap.Error(err))
	}
	return nil
}

type orderStore interface {
	port.OrderRepository
	Migrate(ctx context.Context) error
}

func openOrderRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (port.OrderRepository, func(), error) {
	var (
		repo    orderStore
		closeFn func()
	)
	switch cfg.StorageDriver {
	case config.StorageMySQL:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open mysql: %w", err)
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping mysql: %w", err)
		}
		repo, closeFn = storage.NewMySQLOrderRepository(db), func() { db.Close() }

	case config.StoragePostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		repo, closeFn = storage.NewPostgresOrderRepository(pool), pool.Close

	default:
		logger.Info("Orders kept in memory")
		return storage.NewMemoryOrderRepository(), func() {}, nil
	}

	if err := repo.Migrate(ctx); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("migrate %s: %w", cfg.StorageDriver, err)
	}
	logger.Info("Connected order storage", zap.String("driver", cfg.StorageDriver))
	return repo, closeFn, nil
}

func openInventory(ctx context.Context, cfg *config.Config, catalog *domain.Catalog, logger *zap.Logger) (port.InventoryLedger, func(), error) {
	if cfg.StockBackend != config.StockRedis {
		return storage.NewMemoryInventory(catalog), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}

	inventory := storage.NewRedisInventory(rdb)
	if err := inventory.Seed(ctx, catalog); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("seed stock: %w", err)
	}
	logger.Info("Connected stock ledger", zap.String("redis", cfg.RedisAddr))
	return inventory, func() { rdb.Close() }, nil
}

func newAuditPublisher(cfg *config.Config, logger *zap.Logger) port.AuditPublisher {
	if cfg.KafkaBroker == "" {
		return publisher.NewLogPublisher(logger)
	}
	logger.Info("Publishing order events to Kafka",
		zap.String("broker", cfg.KafkaBroker),
		zap.String("topic", cfg.KafkaTopic),
	)
	return publisher.NewKafkaPublisher(publisher.NewKafkaWriter(cfg.KafkaBroker, cfg.KafkaTopic), logger)
}
