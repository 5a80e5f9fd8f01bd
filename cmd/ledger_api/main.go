package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/virtual-currency-ledger/internal/api"
	"github.com/virtual-currency-ledger/internal/api/service"
	"github.com/virtual-currency-ledger/internal/config"
	"github.com/virtual-currency-ledger/internal/data/mongo"
	"github.com/virtual-currency-ledger/internal/data/postgres"
	"github.com/virtual-currency-ledger/internal/engine"
	"github.com/virtual-currency-ledger/internal/engine/components"
	"github.com/virtual-currency-ledger/internal/logger"
	"github.com/virtual-currency-ledger/internal/platform/messaging/producers"
	"github.com/virtual-currency-ledger/internal/platform/persistence"
	"github.com/virtual-currency-ledger/internal/projection"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("ledger_api")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producer for operation lifecycle events
	eventProducer, err := producers.NewOperationEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize Kafka operation event producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	walletRepo := postgres.NewWalletRepository(log, postgresDB)
	assetRepo := postgres.NewAssetRepository(log, postgresDB)
	entryRepo := postgres.NewEntryRepository(log, postgresDB)
	snapshotRepo := mongo.NewSnapshotRepository(log, mongoDB.Database())

	// Initialize the ledger engine and its components
	lockCoordinator := components.NewLockCoordinator(log, walletRepo)
	idempotencyGuard := components.NewIdempotencyGuard(log, entryRepo)
	ledgerEngine := engine.NewEngine(
		log,
		postgresDB,
		walletRepo,
		assetRepo,
		entryRepo,
		lockCoordinator,
		idempotencyGuard,
		eventProducer,
	)

	// Initialize projectors and the query service
	balanceProjector := projection.NewBalanceProjector(log, entryRepo, snapshotRepo)
	historyProjector := projection.NewHistoryProjector(log, entryRepo)
	queryService := service.NewQueryService(log, walletRepo, assetRepo, entryRepo, balanceProjector, historyProjector)

	// Initialize REST server
	server := api.NewServer(log, cfg, ledgerEngine, queryService)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server first so in-flight operations finish
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = eventProducer.Close(); err != nil {
		log.Error("Error closing Kafka producer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
