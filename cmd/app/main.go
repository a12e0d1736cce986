package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/hotelbooking/config"
	"github.com/Domenick1991/hotelbooking/internal/bootstrap"
	"github.com/Domenick1991/hotelbooking/internal/cache"
	"github.com/Domenick1991/hotelbooking/internal/kafka"
	"github.com/Domenick1991/hotelbooking/internal/service/booking"
	"github.com/Domenick1991/hotelbooking/internal/workflow"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		slog.Error("load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := bootstrap.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	bookingRepo, closeStore, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	temporalClient, err := workflow.Dial(cfg.Temporal, logger)
	if err != nil {
		return err
	}
	defer temporalClient.Close()

	opts := []booking.BookingServiceOption{
		booking.WithLogger(logger),
		booking.WithTaskQueue(cfg.Temporal.TaskQueue),
	}

	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisCache(cfg.Redis)
		defer redisCache.Close()
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, idempotency keys will fail", slog.String("error", err.Error()))
		}
		opts = append(opts, booking.WithIdempotency(redisCache, time.Duration(cfg.Booking.IdempotencyTTLMinutes)*time.Minute))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, logger)
		defer producer.Close()
		if err := producer.CheckConnection(ctx); err != nil {
			logger.Warn("kafka unavailable, booking events may be lost", slog.String("error", err.Error()))
		}
		opts = append(opts,
			booking.WithProducer(producer, cfg.Kafka.BookingEventsTopic),
			booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		)
	}

	bookingService := booking.NewBookingService(bookingRepo, temporalClient, opts...)

	err = bootstrap.Run(ctx, cfg, bookingService, logger)

	// Flush on a fresh context: ctx is already canceled on shutdown.
	if flushErr := bookingRepo.Flush(context.Background()); flushErr != nil {
		logger.Error("flush bookings on shutdown", slog.String("error", flushErr.Error()))
	}
	return err
}
