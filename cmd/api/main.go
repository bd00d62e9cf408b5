package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/clubops/notify-engine/internal/config"
	"github.com/clubops/notify-engine/internal/credential"
	"github.com/clubops/notify-engine/internal/handler"
	"github.com/clubops/notify-engine/internal/infra/postgresql"
	"github.com/clubops/notify-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/clubops/notify-engine/internal/infra/redis"
	"github.com/clubops/notify-engine/internal/observability"
	"github.com/clubops/notify-engine/internal/provider"
	"github.com/clubops/notify-engine/internal/queue"
	"github.com/clubops/notify-engine/internal/repository"
	"github.com/clubops/notify-engine/internal/resolver"
	"github.com/clubops/notify-engine/internal/service"
	"github.com/clubops/notify-engine/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
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
	consumer := queue.NewRabbitMQConsumer(broker, cfg.WorkerConcurrency, logger)

	metrics := observability.NewMetrics()

	bindingRepo := repository.NewGormBindingRepo(db)
	campaignRepo := repository.NewGormCampaignRepo(db)
	deliveryRepo := repository.NewGormDeliveryRepo(db)
	credentialRepo := repository.NewGormCredentialRepo(db)

	credStore, err := credential.NewStore(credentialRepo)
	if err != nil {
		logger.Fatal("credential store initialization failed", zap.Error(err))
	}

	gateway, err := provider.NewGateway(cfg.ProviderBaseURL, credStore.TokenSource(cfg.CredentialKey))
	if err != nil {
		logger.Fatal("provider gateway initialization failed", zap.Error(err))
	}

	credScheduler := credential.NewIntervalScheduler(logger)
	defer credScheduler.Stop()

	renewer, err := credential.NewRenewer(credStore, gateway, credScheduler, cfg.RenewalInterval(), metrics, logger)
	if err != nil {
		logger.Fatal("credential renewer initialization failed", zap.Error(err))
	}

	registry := resolver.NewRegistry()
	registry.Register("members", resolver.NewGormSource(db, "members", map[string]string{
		"recipient":  "phone_number",
		"full_name":  "full_name",
		"first_name": "first_name",
		"email":      "email",
	}))
	registry.Register("events", resolver.NewGormSource(db, "events", map[string]string{
		"recipient":  "contact_phone",
		"event_name": "name",
		"venue":      "venue",
		"starts_at":  "starts_at",
	}))

	rateLimiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.DispatchRatePerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	orchestrator, err := service.NewDispatchOrchestrator(
		bindingRepo,
		campaignRepo,
		deliveryRepo,
		registry,
		publisher,
		cfg.MaxDispatchRetries,
		logger,
	)
	if err != nil {
		logger.Fatal("dispatch orchestrator initialization failed", zap.Error(err))
	}

	worker, err := service.NewWorkerService(
		deliveryRepo,
		campaignRepo,
		bindingRepo,
		consumer,
		gateway,
		rateLimiter,
		orchestrator,
		cfg.WorkerConcurrency,
		logger,
	)
	if err != nil {
		logger.Fatal("worker initialization failed", zap.Error(err))
	}
	worker.SetMetrics(metrics)

	batchScanner, err := service.NewBatchScanner(campaignRepo, orchestrator, cfg.ScanInterval(), 0, logger)
	if err != nil {
		logger.Fatal("batch scanner initialization failed", zap.Error(err))
	}

	retryScanner, err := service.NewRetryScanner(
		deliveryRepo,
		campaignRepo,
		bindingRepo,
		publisher,
		cfg.ScanInterval(),
		0,
		logger,
	)
	if err != nil {
		logger.Fatal("retry scanner initialization failed", zap.Error(err))
	}

	ingestor, err := service.NewReceiptIngestor(deliveryRepo, orchestrator, metrics, logger)
	if err != nil {
		logger.Fatal("receipt ingestor initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(transport.CorrelationMiddleware())
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	handler.RegisterHealthRoutes(app, sqlDB, rdb, broker.Healthy)

	if err := handler.RegisterCampaignRoutes(app, orchestrator); err != nil {
		logger.Fatal("campaign routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterBindingRoutes(app, bindingRepo); err != nil {
		logger.Fatal("binding routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterReceiptRoutes(app, ingestor); err != nil {
		logger.Fatal("receipt routes registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := renewer.Start(ctx); err != nil {
		logger.Fatal("credential renewal bootstrap failed", zap.Error(err))
	}

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return worker.Start(groupCtx)
	})
	g.Go(func() error {
		return batchScanner.Start(groupCtx)
	})
	g.Go(func() error {
		return retryScanner.Start(groupCtx)
	})
	g.Go(func() error {
		logger.Info("notify-engine api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})
	g.Go(func() error {
		<-groupCtx.Done()
		return app.Shutdown()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("service terminated", zap.Error(err))
	}

	logger.Info("notify-engine api stopped")
}
