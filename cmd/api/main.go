package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/lotward/auctioneer/internal/adapters/api"
	"github.com/lotward/auctioneer/internal/adapters/database"
	"github.com/lotward/auctioneer/internal/adapters/realtime"
	"github.com/lotward/auctioneer/internal/auction"
	"github.com/lotward/auctioneer/internal/config"
	pkgdb "github.com/lotward/auctioneer/pkg/database"
	pkgevents "github.com/lotward/auctioneer/pkg/events"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load environment variables (local overrides .env)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Initialize Postgres Connection Pool
	dbConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Unable to parse database config", "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		logger.Error("Unable to create connection pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if pingErr := pool.Ping(ctx); pingErr != nil {
		logger.Error("Unable to ping database", "error", pingErr)
		os.Exit(1)
	}
	logger.Info("Postgres Connected")

	// 2. Connect to RabbitMQ
	amqpConn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()
	logger.Info("RabbitMQ Connected")

	rabbitPublisher, err := pkgevents.NewRabbitMQPublisher(amqpConn, cfg.EventsExchange)
	if err != nil {
		logger.Error("Failed to create RabbitMQ publisher", "error", err)
		os.Exit(1)
	}
	defer rabbitPublisher.Close()

	// 3. Connect to Redis (rate limiting + realtime fan-out)
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("Unable to ping Redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()
	logger.Info("Redis Connected")

	// 4. Initialize Repositories (Infrastructure Layer)
	txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.LockTimeout)
	auctionRepo := database.NewPostgresAuctionRepository(pool)
	bidRepo := database.NewPostgresBidRepository(pool)
	orderRepo := database.NewPostgresOrderRepository(pool)
	outboxRepo := database.NewPostgresOutboxRepository(pool)
	realtimePub := realtime.NewRedisPublisher(rdb)

	// 5. Initialize Service (Domain Layer)
	service := auction.NewService(
		txManager,
		auctionRepo,
		bidRepo,
		orderRepo,
		outboxRepo,
		realtimePub,
		cfg.BuyNowPremiumCents,
		logger,
	)

	// 6. Initialize HTTP Handler
	handler := api.NewHandler(service, logger)
	router := gin.New()
	router.Use(gin.Recovery())
	api.Setup(router, handler, rdb, api.RouterConfig{
		CronSecret:    cfg.CronSecret,
		BidRateLimit:  cfg.BidRateLimit,
		BidRateWindow: cfg.BidRateWindow,
	})

	// 7. Background loops: outbox relay + settlement scheduler
	outboxRelay := pkgevents.NewOutboxRelay(
		outboxRepo,
		rabbitPublisher,
		txManager,
		cfg.OutboxBatch,
		cfg.OutboxInterval,
		cfg.EventsExchange,
		logger,
	)
	scheduler := auction.NewScheduler(service, cfg.SettleInterval, logger)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting Outbox Relay...")
		return outboxRelay.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("Starting Settlement Scheduler...", "interval", cfg.SettleInterval)
		return scheduler.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("Starting Auction API", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Server stopped")
}
