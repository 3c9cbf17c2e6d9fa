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

	"github.com/CodeSyncr/collaborative-expense-tracker/internal/config"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/database"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/live"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/logger"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/server"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/storage"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/validator"
)

// @title           Collaborative Expense Tracker API
// @version         1.0
// @description     Shared budgets for trips, flats and events: projects with member contributions, expenses with receipts, notifications, share links and live summaries.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(appConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer dbManager.Close()

	// Run migrations
	if err := dbManager.Migrate(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Receipt storage
	store, closeStore, err := storage.Open(appConfig)
	if err != nil {
		return fmt.Errorf("failed to open receipt storage: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warnw("failed to close receipt storage", "error", err)
		}
	}()

	validator.Register()
	hub := live.NewHub(32)
	router := server.NewRouter(appConfig, server.NewServices(dbManager.DB(), store, hub), store, hub)

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Infow("Starting expense tracker API",
			"port", appConfig.Port,
			"db_driver", appConfig.DBDriver,
			"storage_driver", appConfig.StorageDriver,
		)
		log.Infof("Swagger documentation available at %s/swagger/index.html", appConfig.PublicBaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
