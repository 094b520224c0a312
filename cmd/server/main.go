package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"floodguard/internal/app"
	"floodguard/internal/config"
	"floodguard/internal/handlers"
	"floodguard/internal/models"
	"floodguard/pkg/logging"
	"floodguard/pkg/metrics"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("floodguard-api", version, logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting FloodGuard API server", logging.Fields{
		"version":          version,
		"server_host":      cfg.Server.Host,
		"server_port":      cfg.Server.Port,
		"database_enabled": cfg.Database.Enabled,
		"ledger_enabled":   cfg.Ledger.Enabled,
		"default_station":  cfg.NOAA.DefaultStation,
	})

	metricsCollector := metrics.NewCollector("floodguard")

	components, err := app.New(ctx, cfg, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to initialize components", logging.Fields{}, err)
	}
	defer components.Close()

	if err := components.ConnectSession(ctx); err != nil {
		logger.WarnErr(ctx, "[STARTUP_WARN] Ledger session not connected, writes will be refused", logging.Fields{
			"kind": models.KindOf(err),
		}, err)
	}

	// Optional parts stay nil interfaces when disabled
	var (
		health  handlers.HealthChecker
		history handlers.HistoryService
		reader  handlers.LedgerReader
	)
	if components.DB != nil {
		health = components.DB
		history = components.Stats
	}
	if components.Gateway != nil {
		reader = components.Gateway
	}

	router := handlers.NewRouter(logger, metricsCollector, promhttp.Handler(),
		handlers.NewFloodHandler(components.Flood, health, logger, metricsCollector, version),
		handlers.NewLedgerHandler(reader, components.Session, components.Sync, cfg.Server.APIToken, logger, metricsCollector),
		handlers.NewHistoryHandler(history, cfg.NOAA.DefaultStation, logger, metricsCollector),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
