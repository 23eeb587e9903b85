package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-analytics/internal/analytics"
	"ms-analytics/internal/attribution"
	"ms-analytics/internal/cache"
	"ms-analytics/internal/config"
	"ms-analytics/internal/kafka"
	"ms-analytics/internal/logger"
	"ms-analytics/internal/models"
	purchases_db "ms-analytics/internal/purchases/db"
)

// The aggregation job periodically rebuilds the cached analytics views
// through the same attribution package the HTTP service uses, then
// announces the recompute on Kafka. Keeping both surfaces on one shared
// implementation and one injected clock is the whole point: no second
// copy of the classification rule that can drift.

func recompute(ctx context.Context, service *analytics.Service, producer *kafka.Producer, topic string, log *logger.Logger) {
	// Drop stale views first so the rebuild below repopulates the cache.
	if err := service.InvalidateViews(ctx); err != nil {
		log.Warn("CACHE", fmt.Sprintf("Failed to invalidate views before recompute: %v", err))
	}

	breakdown, err := service.InstanceBreakdown(ctx)
	if err != nil {
		log.Error("ANALYTICS", fmt.Sprintf("Breakdown recompute failed: %v", err))
		return
	}

	for _, bucket := range []attribution.Bucketing{attribution.BucketWeekly, attribution.BucketMonthly} {
		if _, err := service.SalesSeries(ctx, bucket); err != nil {
			log.Error("ANALYTICS", fmt.Sprintf("%s series recompute failed: %v", bucket, err))
		}
	}

	tickets := 0
	for _, row := range breakdown.Instances {
		tickets += row.TicketsSold
	}
	log.LogAnalytics("RECOMPUTE", fmt.Sprintf("%d instances, %d tickets sold", len(breakdown.Instances), tickets))

	if producer == nil {
		return
	}
	event := models.AnalyticsUpdatedEvent{
		RecomputedAt:  time.Now().UTC(),
		InstanceCount: len(breakdown.Instances),
		TicketsSold:   tickets,
	}
	value, err := json.Marshal(event)
	if err != nil {
		log.Error("KAFKA", fmt.Sprintf("Failed to marshal update event: %v", err))
		return
	}
	if err := producer.Publish(topic, breakdown.ReferenceDate, value); err != nil {
		log.Error("KAFKA", fmt.Sprintf("Failed to publish update event: %v", err))
	}
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting aggregation job")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
	}
	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	defer bunDB.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	defer redisClient.Close()

	store := &purchases_db.DB{Bun: bunDB}
	viewCache := cache.New(redisClient, cfg.Analytics.CacheTTL)

	service, err := analytics.NewService(store, viewCache, cfg.Analytics, log)
	if err != nil {
		log.Fatal("CONFIG", fmt.Sprintf("Invalid analytics configuration: %v", err))
	}

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{cfg.Kafka.Topics.AnalyticsUpdated}); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer = kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()
	}

	recompute(ctx, service, producer, cfg.Kafka.Topics.AnalyticsUpdated, log)

	ticker := time.NewTicker(cfg.Analytics.RecomputeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			recompute(ctx, service, producer, cfg.Kafka.Topics.AnalyticsUpdated, log)
		case <-ctx.Done():
			log.Info("APP", "Aggregation job stopped")
			return
		}
	}
}
