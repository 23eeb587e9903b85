package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-analytics/internal/analytics"
	analytics_api "ms-analytics/internal/analytics/api"
	"ms-analytics/internal/cache"
	"ms-analytics/internal/config"
	"ms-analytics/internal/database/migrations"
	"ms-analytics/internal/kafka"
	"ms-analytics/internal/logger"
	"ms-analytics/internal/models"
	"ms-analytics/internal/passes"
	purchases_db "ms-analytics/internal/purchases/db"
)

func verifyConnections(ctx context.Context, cfg *config.Config, log *logger.Logger) (*bun.DB, *redis.Client) {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
		if err == nil {
			err = sqldb.Ping()
		}
		if err == nil {
			break
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	log.Info("DATABASE", "PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s", cfg.Redis.Addr))

	return bunDB, redisClient
}

// paymentEventHandler folds settled payments into the purchase snapshot
// and drops the cached views so the next read recomputes.
func paymentEventHandler(store *purchases_db.DB, service *analytics.Service, log *logger.Logger) func(models.PaymentEvent) {
	return func(event models.PaymentEvent) {
		if event.PurchaseID == "" {
			event.PurchaseID = uuid.NewString()
			log.Warn("KAFKA", fmt.Sprintf("Payment event without purchase id; assigned %s", event.PurchaseID))
		}

		purchase := models.Purchase{
			PurchaseID:       event.PurchaseID,
			PurchaserID:      event.PurchaserID,
			AmountMinorUnits: event.AmountMinorUnits,
			PaymentStatus:    event.Status,
			CreatedAt:        event.Timestamp,
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := store.UpsertPurchase(ctx, purchase); err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to upsert purchase %s: %v", purchase.PurchaseID, err))
			return
		}
		if err := service.InvalidateViews(ctx); err != nil {
			log.Warn("CACHE", fmt.Sprintf("Failed to invalidate cached views: %v", err))
		}
	}
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting analytics service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bunDB, redisClient := verifyConnections(ctx, cfg, log)
	defer bunDB.Close()
	defer redisClient.Close()

	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
	if err := runner.Run(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migration failed: %v", err))
	}
	log.Info("DATABASE", "Migrations applied")

	store := &purchases_db.DB{Bun: bunDB}
	viewCache := cache.New(redisClient, cfg.Analytics.CacheTTL)

	service, err := analytics.NewService(store, viewCache, cfg.Analytics, log)
	if err != nil {
		log.Fatal("CONFIG", fmt.Sprintf("Invalid analytics configuration: %v", err))
	}

	if cfg.Kafka.Enabled {
		topics := []string{
			cfg.Kafka.Topics.PaymentSucceeded,
			cfg.Kafka.Topics.PaymentFailed,
			cfg.Kafka.Topics.AnalyticsUpdated,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}

		handler := paymentEventHandler(store, service, log)
		for _, topic := range []string{cfg.Kafka.Topics.PaymentSucceeded, cfg.Kafka.Topics.PaymentFailed} {
			consumer := kafka.NewConsumer(cfg.Kafka.Brokers, topic, cfg.Kafka.GroupID, log)
			defer consumer.Close()
			go consumer.Start(ctx, handler)
		}
	} else {
		log.Warn("KAFKA", "Kafka disabled; purchase snapshot will only change via direct writes")
	}

	apiHandler := analytics_api.NewHandler(service, passes.NewGenerator(cfg.Analytics.PassSecret), log)
	r := chi.NewRouter()
	apiHandler.RegisterRoutes(r)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("APP", fmt.Sprintf("Analytics service listening on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("APP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	<-ctx.Done()
	log.Info("APP", "Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("APP", fmt.Sprintf("HTTP shutdown error: %v", err))
	}
	log.Info("APP", "Analytics service stopped")
}
