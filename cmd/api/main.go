package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"gigmarket/internal/config"
	"gigmarket/internal/handler"
	"gigmarket/internal/httpserver"
	"gigmarket/internal/repository"
	"gigmarket/internal/service/auth"
	"gigmarket/internal/service/engagement"
	"gigmarket/pkg/db"
	"gigmarket/pkg/logger"
	"gigmarket/pkg/otel"
	"gigmarket/pkg/outbox"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger(cfg.Env)
	defer log.Sync()

	shutdownTracing, err := otel.Init(otel.Config{
		ServiceName:    "gigmarket-api",
		ServiceVersion: "1.0.0",
		Endpoint:       cfg.Otel.Endpoint,
		Enabled:        cfg.Otel.Enabled,
	}, log)
	if err != nil {
		log.Fatal("Failed to init tracing", zap.Error(err))
	}
	defer shutdownTracing()

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	if cfg.DB.Migrate {
		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := repository.Migrate(migrateCtx, dbConn, log)
		cancel()
		if err != nil {
			log.Fatal("Schema migration failed", zap.Error(err))
		}
	}

	// Repositories
	outboxRepo := outbox.NewRepository(dbConn)
	store := repository.NewPGStore(dbConn, outboxRepo, log)
	userRepo := repository.NewUserRepository(dbConn, log)

	// Services
	engagementService := engagement.NewService(store, log)
	authService := auth.NewService(userRepo, cfg.JWT.Secret, cfg.JWT.TTL, log)
	replayService := outbox.NewReplayService(outboxRepo)

	// Router
	router := httpserver.NewRouter(httpserver.Handlers{
		Auth:          handler.NewAuthHandler(authService, log),
		Projects:      handler.NewProjectHandler(engagementService, log),
		Bids:          handler.NewBidHandler(engagementService, log),
		Milestones:    handler.NewMilestoneHandler(engagementService, log),
		Reviews:       handler.NewReviewHandler(engagementService, log),
		Notifications: handler.NewNotificationHandler(engagementService, log),
		Admin:         handler.NewAdminHandler(replayService, log),
	}, cfg.JWT.Secret, dbConn, log)

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Starting API server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server start failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down API server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	log.Info("API server stopped")
}
