package main

import (
	"context"
	"log"
	"time"

	"pharmacy-service/config"
	"pharmacy-service/internal/store"
	"pharmacy-service/internal/util"

	"go.uber.org/zap"
)

// migrate brings the schema up to date and checks that the stock trigger
// and the sale item quantity constraint are installed.
func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()
	logger := util.GetLogger()

	db, err := store.NewStore(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	applied, err := db.Migrate(ctx)
	if err != nil {
		logger.Fatal("Migration failed", zap.Error(err))
	}

	versions, err := db.AppliedVersions(ctx)
	if err != nil {
		logger.Fatal("Failed to read schema versions", zap.Error(err))
	}
	logger.Info("Migrations complete",
		zap.Int("applied", applied),
		zap.Ints("versions", versions),
		zap.String("driver", db.Driver()),
	)

	if err := db.VerifyStockGuards(ctx); err != nil {
		logger.Fatal("Stock guards not installed", zap.Error(err))
	}
	logger.Info("Stock guards verified",
		zap.String("trigger", store.StockTriggerName),
		zap.String("constraint", store.QuantityConstraintName),
	)
}
