package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/vallegrande/notification-engine/internal/config"
	"github.com/vallegrande/notification-engine/internal/handler"
	"github.com/vallegrande/notification-engine/internal/infra/postgresql"
	"github.com/vallegrande/notification-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/vallegrande/notification-engine/internal/infra/redis"
	"github.com/vallegrande/notification-engine/internal/observability"
	"github.com/vallegrande/notification-engine/internal/queue"
	"github.com/vallegrande/notification-engine/internal/repository"
	"github.com/vallegrande/notification-engine/internal/service"
	"github.com/vallegrande/notification-engine/internal/transport"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel, "api")
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	broker, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer broker.Close()
	publisher := queue.NewRabbitMQPublisher(broker)

	metrics := observability.NewMetrics()

	notificationService, err := service.NewNotificationService(
		repository.NewGormNotificationRepo(db),
		repository.NewGormAttemptRepo(db),
		publisher,
		publisher,
		logger,
	)
	if err != nil {
		logger.Fatal("notification service initialization failed", zap.Error(err))
	}
	notificationService.SetMetrics(metrics)

	preferenceService, err := service.NewPreferenceService(repository.NewGormPreferenceRepo(db), logger)
	if err != nil {
		logger.Fatal("preference service initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb, broker)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	if err := handler.RegisterNotificationRoutes(app, notificationService); err != nil {
		logger.Fatal("notification routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterPreferenceRoutes(app, preferenceService); err != nil {
		logger.Fatal("preference routes registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Error("api shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("notification api started", zap.Int("port", cfg.APIPort))
	if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
		logger.Fatal("api server stopped", zap.Error(err))
	}
	logger.Info("notification api stopped")
}
