package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	mqcontracts "gigmarket/contracts/mq"
	"gigmarket/internal/config"
	"gigmarket/internal/httpserver"
	"gigmarket/internal/mqhandler"
	"gigmarket/internal/repository"
	"gigmarket/pkg/db"
	"gigmarket/pkg/logger"
	"gigmarket/pkg/mq"
	"gigmarket/pkg/otel"
	"gigmarket/pkg/outbox"
	"gigmarket/pkg/redis"
	"gigmarket/pkg/util"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger(cfg.Env)
	defer log.Sync()

	log.Info("Starting worker service...")

	shutdownTracing, err := otel.Init(otel.Config{
		ServiceName:    "gigmarket-worker",
		ServiceVersion: "1.0.0",
		Endpoint:       cfg.Otel.Endpoint,
		Enabled:        cfg.Otel.Enabled,
	}, log)
	if err != nil {
		log.Fatal("Failed to init tracing", zap.Error(err))
	}
	defer shutdownTracing()

	// Redis
	rdb, err := redis.NewRedisClient(cfg.Redis, log)
	if err != nil {
		log.Fatal("Redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	deduper := util.NewDeduper(rdb, cfg.Worker.DedupTTL, log)
	retryCounter := util.NewRetryCounter(rdb, cfg.Worker.RetryTTL)

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB connection failed", zap.Error(err))
	}
	defer dbConn.Close()

	// MQ Publisher: outbox dispatch and dead letters
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	for _, key := range []string{mqcontracts.RoutingKeyNotificationCreated, mqcontracts.RoutingKeyMessageCreated} {
		if err := publisher.DeclareDLQ(key); err != nil {
			log.Fatal("Failed to declare DLQ", zap.String("routing_key", key), zap.Error(err))
		}
	}

	// Repositories
	outboxRepo := outbox.NewRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn, log)
	messageRepo := repository.NewMessageRepository(dbConn, log)

	// Handlers
	notificationHandler := mqhandler.NewNotificationCreatedHandler(
		notificationRepo, deduper, retryCounter, publisher, cfg.Worker.MaxRetries, log,
	)
	messageHandler := mqhandler.NewMessageCreatedHandler(
		messageRepo, deduper, retryCounter, publisher, cfg.Worker.MaxRetries, log,
	)

	// Consumers
	notificationConsumer, err := mq.NewConsumer(cfg.MQ.URL, "notification.created.q", mqcontracts.RoutingKeyNotificationCreated, log)
	if err != nil {
		log.Fatal("Notification consumer init failed", zap.Error(err))
	}
	defer notificationConsumer.Close()
	notificationConsumer.SetHandler(notificationHandler.Handle)

	messageConsumer, err := mq.NewConsumer(cfg.MQ.URL, "message.created.q", mqcontracts.RoutingKeyMessageCreated, log)
	if err != nil {
		log.Fatal("Message consumer init failed", zap.Error(err))
	}
	defer messageConsumer.Close()
	messageConsumer.SetHandler(messageHandler.Handle)

	dispatcher := outbox.NewDispatcher(outboxRepo, publisher, log).
		WithInterval(cfg.Outbox.Interval).
		WithBatchSize(cfg.Outbox.BatchSize).
		WithMaxRetries(cfg.Outbox.MaxRetries)

	srv := &http.Server{
		Addr:              cfg.Worker.HTTPPort,
		Handler:           httpserver.NewProbeRouter(dbConn).Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Start(gctx)
	})
	for _, c := range []*mq.Consumer{notificationConsumer, messageConsumer} {
		g.Go(func() error {
			if err := c.StartConsuming(); err != nil {
				return err
			}
			if gctx.Err() == nil {
				return errors.New("consumer stopped: broker channel closed")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			c.Stop()
			return nil
		})
	}
	g.Go(func() error {
		log.Info("Probe server starting", zap.String("port", cfg.Worker.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Info("Worker running")
	if err := g.Wait(); err != nil {
		log.Error("Worker stopped with error", zap.Error(err))
		return
	}
	log.Info("Worker shutdown complete")
}
