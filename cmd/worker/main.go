package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/hotelbooking/config"
	"github.com/Domenick1991/hotelbooking/internal/bootstrap"
	"github.com/Domenick1991/hotelbooking/internal/email"
	"github.com/Domenick1991/hotelbooking/internal/kafka"
	"github.com/Domenick1991/hotelbooking/internal/service/booking"
	"github.com/Domenick1991/hotelbooking/internal/workflow"
	"github.com/Domenick1991/hotelbooking/internal/workflow/hotel"
	"go.temporal.io/sdk/worker"
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
	logger := bootstrap.NewLogger(cfg.Log).With(slog.String("process", "worker"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("worker stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	temporalClient, err := workflow.Dial(cfg.Temporal, logger)
	if err != nil {
		return err
	}
	defer temporalClient.Close()

	w := worker.New(temporalClient.SDK(), cfg.Temporal.TaskQueue, worker.Options{})
	hotel.Register(w, hotel.NewActivities())
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()
	logger.Info("temporal worker started", slog.String("task_queue", cfg.Temporal.TaskQueue))

	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.NotificationsTopic != "" {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, logger)
		defer consumer.Close()
		go consumeNotifications(ctx, consumer, email.NewSender(logger), logger)
	} else {
		logger.Info("kafka not configured, guest notifications disabled")
	}

	// The file store belongs to the app process; only a shared database can
	// be reconciled from here.
	if cfg.Store.Driver != config.StoreDriverPostgres {
		logger.Info("reconciliation disabled for store driver", slog.String("driver", cfg.Store.Driver))
		<-ctx.Done()
		logger.Info("shutting down")
		return nil
	}

	return reconcileLoop(ctx, cfg, temporalClient, logger)
}

func consumeNotifications(ctx context.Context, consumer *kafka.Consumer, sender *email.Sender, logger *slog.Logger) {
	err := consumer.Consume(ctx, sender.Send)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", slog.String("error", err.Error()))
	}
}

func reconcileLoop(ctx context.Context, cfg *config.Config, workflows workflow.Client, logger *slog.Logger) error {
	bookingRepo, closeStore, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	bookingService := booking.NewBookingService(bookingRepo, workflows, booking.WithLogger(logger))

	ticker := time.NewTicker(time.Duration(cfg.Worker.ReconcileIntervalMinutes) * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			reconciled, err := bookingService.ReconcilePayments(ctx)
			if err != nil {
				logger.Error("reconcile payments", slog.String("error", err.Error()))
				continue
			}
			if len(reconciled) > 0 {
				logger.Info("reconciled bookings", slog.Int("count", len(reconciled)))
			}
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		}
	}
}
