package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/virtual-currency-ledger/internal/config"
	"github.com/virtual-currency-ledger/internal/data/mongo"
	"github.com/virtual-currency-ledger/internal/data/postgres"
	"github.com/virtual-currency-ledger/internal/logger"
	"github.com/virtual-currency-ledger/internal/platform/messaging/consumers"
	"github.com/virtual-currency-ledger/internal/platform/persistence"
	"github.com/virtual-currency-ledger/internal/projection"
	"github.com/virtual-currency-ledger/internal/projection/refresher"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("balance_projector")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Balance Projector",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

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

	// Initialize repositories and the balance projector
	entryRepo := postgres.NewEntryRepository(log, postgresDB)
	snapshotRepo := mongo.NewSnapshotRepository(log, mongoDB.Database())
	balanceProjector := projection.NewBalanceProjector(log, entryRepo, snapshotRepo)

	// Initialize the snapshot refresher with its worker pool
	snapshotRefresher, err := refresher.NewSnapshotRefresher(log, balanceProjector, cfg.WorkerPool.Size)
	if err != nil {
		log.Error("Failed to initialize snapshot refresher", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka consumer for operation events
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	// Create error channel for service errors
	errChan := make(chan error, 1)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start Kafka consumer in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.OperationsTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, cfg.Kafka.OperationsTopic, cfg.Kafka.ConsumerGroup, snapshotRefresher.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	// Start the periodic full refresh in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting periodic snapshot refresh",
			"interval", cfg.Snapshot.RefreshInterval.String(),
			"refresh_on_start", cfg.Snapshot.RefreshOnStart,
		)
		snapshotRefresher.RunPeriodic(appCtx, cfg.Snapshot.RefreshInterval, cfg.Snapshot.RefreshOnStart)
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Wait for all goroutines to finish
	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	// Release the refresher worker pool
	snapshotRefresher.Close()

	// Close Kafka consumer
	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Close MongoDB connection
	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serviceErr != nil {
		log.Error("Balance Projector shutdown with errors", "error", serviceErr)
	}
	if err != nil {
		log.Error("Balance Projector shutdown completed with errors")
	} else {
		log.Info("Balance Projector shutdown completed successfully")
	}
}
