//go:build ignore

package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tipstream/tip_service/internal/domain/services/ledger"
	"github.com/tipstream/tip_service/internal/infrastructure/cache"
	"github.com/tipstream/tip_service/internal/infrastructure/config"
	"github.com/tipstream/tip_service/internal/infrastructure/database"
	"github.com/tipstream/tip_service/internal/infrastructure/repositories"
	"github.com/tipstream/tip_service/pkg/logger"
)

// Clears every tip record from the configured ledger backend. Run with the
// service stopped; live monitors would otherwise keep writing.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	appLog := logger.New("info", cfg.Environment)

	var store ledger.Store
	switch cfg.Ledger.Backend {
	case "postgres":
		db, err := database.NewConnection(cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		store = repositories.NewTipTransactionRepository(db)
	case "redis":
		client, err := cache.NewRedisClient(&cfg.Redis, appLog.Zap())
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer client.Close()
		store = repositories.NewRedisTipStore(client, cfg.Redis.KeyPrefix)
	default:
		fmt.Println("Memory ledger has nothing to clear")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	l := ledger.NewLedger(store, appLog)
	if err := l.Load(ctx); err != nil {
		log.Fatalf("Failed to load ledger: %v", err)
	}
	count := len(l.List())

	if err := l.Clear(ctx); err != nil {
		log.Fatalf("Failed to clear ledger: %v", err)
	}
	fmt.Printf("Cleared %d tip records from the %s ledger\n", count, cfg.Ledger.Backend)
}
