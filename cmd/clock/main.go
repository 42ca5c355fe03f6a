package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/ingredient-market/internal/adapter/clock"
	"github.com/rl1809/ingredient-market/internal/adapter/handler"
	"github.com/rl1809/ingredient-market/internal/config"
	"github.com/rl1809/ingredient-market/internal/observability"
)

func main() {
	cfg, err := config.LoadClock()
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

	simClock := clock.NewSimulationClock(cfg.StartTime, logger)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.NewClockHandler(simClock, logger).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Clock server listening", zap.String("addr", cfg.Addr), zap.Int64("start", cfg.StartTime))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Clock server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	simClock.StopAuto()

	// websocket streams are hijacked and not tracked by Shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("HTTP shutdown", zap.Error(err))
	}
	logger.Info("Clock server stopped", zap.Int64("time", simClock.Now()))
}
