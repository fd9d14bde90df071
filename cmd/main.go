package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/tipstream/tip_service/internal/api/routes"
	"github.com/tipstream/tip_service/internal/infrastructure/config"
	"github.com/tipstream/tip_service/internal/infrastructure/database"
	"github.com/tipstream/tip_service/internal/infrastructure/di"
	"github.com/tipstream/tip_service/pkg/graceful"
	"github.com/tipstream/tip_service/pkg/logger"
	"github.com/tipstream/tip_service/pkg/tracing"
)

//go:generate swag init -g cmd/main.go -o docs

// @title Tip Settlement API
// @version 1.0
// @description Cross-chain tip submission, tracking and retry
// @host localhost:8080
// @BasePath /
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	// Initialize OpenTelemetry tracing
	tracingConfig := tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		CollectorURL: cfg.Tracing.CollectorURL,
		Environment:  cfg.Environment,
		SampleRate:   cfg.Tracing.SampleRate,
		Insecure:     cfg.Tracing.Insecure,

		ServiceName:     cfg.Tracing.ServiceName,
		SettlementChain: cfg.Settlement.CurrentChain,
		LedgerBackend:   cfg.Ledger.Backend,
		ExportTimeout:   time.Duration(cfg.Tracing.ExportTimeoutSeconds) * time.Second,
	}
	tracingShutdown, err := tracing.InitTracer(context.Background(), tracingConfig, log.Zap())
	if err != nil {
		log.Fatal("Failed to initialize tracing", "error", err)
	}
	defer tracingShutdown(context.Background())

	// The database is only needed by the postgres ledger backend
	var db *sqlx.DB
	if cfg.Ledger.Backend == "postgres" {
		db, err = database.NewConnection(cfg.Database)
		if err != nil {
			log.Fatal("Failed to connect to database", "error", err)
		}
		if err := database.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
			log.Fatal("Failed to run migrations", "error", err)
		}
		log.Info("Database migrations applied")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Build dependency injection container
	container, err := di.NewContainer(cfg, db, log)
	if err != nil {
		log.Fatal("Failed to create DI container", "error", err)
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := container.Start(startCtx); err != nil {
		cancel()
		log.Fatal("Failed to start settlement engine", "error", err)
	}
	cancel()

	router := routes.SetupRoutes(container)

	server := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	go func() {
		log.Info("Starting server",
			"port", cfg.Server.Port,
			"environment", cfg.Environment,
			"current_chain", cfg.Settlement.CurrentChain,
		)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	shutdown := graceful.NewShutdownManager(server, log)
	container.RegisterShutdown(shutdown)
	shutdown.WaitForShutdown()
}
