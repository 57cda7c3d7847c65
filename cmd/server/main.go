package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pharmacy-service/config"
	"pharmacy-service/internal/api"
	"pharmacy-service/internal/auth"
	"pharmacy-service/internal/broker"
	"pharmacy-service/internal/service"
	"pharmacy-service/internal/session"
	"pharmacy-service/internal/store"
	"pharmacy-service/internal/util"
	"pharmacy-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting pharmacy service", zap.String("env", cfg.Server.Env))

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	if cfg.Observ.TracingEnabled {
		tp, err := util.InitTracer(util.ServiceName, cfg.Observ.JaegerEndpoint)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Error("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	db, err := store.NewStore(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected", zap.String("driver", db.Driver()))

	if cfg.Database.AutoMigrate {
		applied, err := db.Migrate(context.Background())
		if err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		logger.Info("Database migrated", zap.Int("applied", applied))
	}
	if err := db.VerifyStockGuards(context.Background()); err != nil {
		logger.Warn("Stock guards missing, run the migrate command", zap.Error(err))
	}

	var sessions session.Store
	switch cfg.Auth.SessionBackend {
	case "memory":
		sessions = session.NewMemoryStore()
		logger.Info("Using in-memory sessions")
	default:
		redisStore, err := session.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisStore.Close()
		sessions = redisStore
		logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))
	}

	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var publisher service.EventPublisher = broker.NoopPublisher{}
	var alertWorker *worker.StockAlertWorker
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicRecords)
		defer producer.Close()
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicRecords))

		eventPublisher := broker.NewEventPublisher(producer)
		publisher = eventPublisher

		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicRecords, cfg.Kafka.ConsumerGroup)
		alertWorker = worker.NewStockAlertWorker(consumer, db, eventPublisher, cfg.Business.LowStockThreshold)
		go func() {
			if err := alertWorker.Start(workerCtx); err != nil {
				logger.Error("Stock alert worker error", zap.Error(err))
			}
		}()
	} else {
		logger.Info("Kafka disabled, record events are not published")
	}

	recordService := service.NewRecordService(db, publisher, cfg.Business)
	accountService := service.NewAccountService(db, sessions, issuer)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(recordService, accountService, db)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if alertWorker != nil {
		alertWorker.Stop()
	}

	logger.Info("Server exited")
}
