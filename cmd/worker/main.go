package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/vallegrande/notification-engine/internal/config"
	"github.com/vallegrande/notification-engine/internal/dispatch"
	"github.com/vallegrande/notification-engine/internal/domain"
	"github.com/vallegrande/notification-engine/internal/handler"
	"github.com/vallegrande/notification-engine/internal/infra/postgresql"
	"github.com/vallegrande/notification-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/vallegrande/notification-engine/internal/infra/redis"
	"github.com/vallegrande/notification-engine/internal/ingest"
	"github.com/vallegrande/notification-engine/internal/observability"
	"github.com/vallegrande/notification-engine/internal/provider"
	"github.com/vallegrande/notification-engine/internal/queue"
	"github.com/vallegrande/notification-engine/internal/repository"
	"github.com/vallegrande/notification-engine/internal/service"
	"github.com/vallegrande/notification-engine/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel, "worker")
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("invalid default timezone", zap.Error(err))
	}

	retryPolicy, err := dispatch.LoadRetryPolicy(cfg.RetryPolicyFile)
	if err != nil {
		logger.Fatal("retry policy load failed", zap.Error(err))
	}

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
	consumer := queue.NewRabbitMQConsumer(broker, cfg.WorkerConcurrency, logger)

	metrics := observability.NewMetrics()

	notificationRepo := repository.NewGormNotificationRepo(db)
	attemptRepo := repository.NewGormAttemptRepo(db)

	templates, err := infraredis.NewCachedTemplateStore(repository.NewGormTemplateRepo(db), rdb, cfg.TemplateCacheTTL(), logger)
	if err != nil {
		logger.Fatal("template cache initialization failed", zap.Error(err))
	}

	providers, err := newProviderRegistry(cfg)
	if err != nil {
		logger.Fatal("provider initialization failed", zap.Error(err))
	}
	limiterOpts := make([]infraredis.LimiterOption, 0, 4)
	for channel, limit := range cfg.ChannelRateLimits() {
		limiterOpts = append(limiterOpts, infraredis.WithChannelLimit(channel, limit))
	}
	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec, limiterOpts...)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	orchestrator, err := dispatch.NewOrchestrator(
		repository.NewGormPreferenceRepo(db),
		templates,
		providers,
		dispatch.WithStateStore(notificationRepo),
		dispatch.WithRateLimiter(limiter),
		dispatch.WithRenderer(dispatch.NewRenderer(cfg.StrictTemplateParams)),
		dispatch.WithQuietHoursGate(dispatch.NewQuietHoursGate(loc)),
		dispatch.WithRetryPolicy(retryPolicy),
		dispatch.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal("orchestrator initialization failed", zap.Error(err))
	}

	locker, err := infraredis.NewNotificationLocker(rdb, cfg.LockTTL())
	if err != nil {
		logger.Fatal("locker initialization failed", zap.Error(err))
	}

	worker, err := service.NewWorkerService(
		notificationRepo,
		attemptRepo,
		consumer,
		publisher,
		publisher,
		orchestrator,
		locker,
		cfg.WorkerConcurrency,
		logger,
	)
	if err != nil {
		logger.Fatal("worker initialization failed", zap.Error(err))
	}
	worker.SetMetrics(metrics)

	scheduler, err := service.NewScheduler(notificationRepo, publisher, cfg.SchedulerSpec, cfg.SchedulerBatchLimit, logger)
	if err != nil {
		logger.Fatal("scheduler initialization failed", zap.Error(err))
	}
	scheduler.SetMetrics(metrics)

	notificationService, err := service.NewNotificationService(notificationRepo, attemptRepo, publisher, publisher, logger)
	if err != nil {
		logger.Fatal("notification service initialization failed", zap.Error(err))
	}
	notificationService.SetMetrics(metrics)

	listener, err := ingest.NewListener(notificationService, logger)
	if err != nil {
		logger.Fatal("inbound listener initialization failed", zap.Error(err))
	}
	listener.SetMetrics(metrics)

	ops := fiber.New(fiber.Config{
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	handler.RegisterHealthRoutes(ops, sqlDB, rdb, broker)
	ops.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Start(groupCtx) })
	g.Go(func() error { return scheduler.Start(groupCtx) })
	g.Go(func() error { return listener.Start(groupCtx, consumer) })
	g.Go(func() error {
		return ops.Listen(fmt.Sprintf(":%d", cfg.MetricsPort))
	})
	g.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return ops.ShutdownWithContext(shutdownCtx)
	})

	logger.Info("notification worker started",
		zap.Int("concurrency", cfg.WorkerConcurrency),
		zap.Stringers("channels", providers.Channels()),
		zap.Int("metricsPort", cfg.MetricsPort),
		zap.String("schedulerSpec", cfg.SchedulerSpec),
	)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("worker stopped", zap.Error(err))
	}
	logger.Info("notification worker stopped")
}

func newProviderRegistry(cfg *config.Config) (provider.Registry, error) {
	registry := provider.Registry{
		domain.ChannelInApp: provider.NewInAppProvider(),
	}

	gateways := map[domain.Channel]string{
		domain.ChannelSMS:      cfg.SMSGatewayURL,
		domain.ChannelWhatsApp: cfg.WhatsAppGatewayURL,
		domain.ChannelEmail:    cfg.EmailGatewayURL,
	}
	for channel, endpoint := range gateways {
		gateway, err := provider.NewHTTPGateway(channel, endpoint, cfg.GatewayAPIKey)
		if err != nil {
			return nil, fmt.Errorf("%s gateway: %w", channel, err)
		}
		registry[channel] = gateway
	}
	return registry, nil
}
