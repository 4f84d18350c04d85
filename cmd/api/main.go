package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/bandmail/warmup-engine/internal/config"
	"github.com/bandmail/warmup-engine/internal/handler"
	"github.com/bandmail/warmup-engine/internal/infra/postgresql"
	"github.com/bandmail/warmup-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/bandmail/warmup-engine/internal/infra/redis"
	"github.com/bandmail/warmup-engine/internal/observability"
	"github.com/bandmail/warmup-engine/internal/provider"
	"github.com/bandmail/warmup-engine/internal/queue"
	"github.com/bandmail/warmup-engine/internal/repository"
	"github.com/bandmail/warmup-engine/internal/service"
	"github.com/bandmail/warmup-engine/internal/transport"
	"github.com/bandmail/warmup-engine/internal/webhook"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.AppEnv)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("warmup-engine api stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN, postgresql.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}
	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis initialization failed: %w", err)
	}
	defer rdb.Close()

	var publisher queue.Publisher = queue.NopPublisher{}
	broker, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Warn("rabbitmq unavailable, email events will not be published", zap.Error(err))
	} else {
		publisher = queue.NewRabbitMQPublisher(broker)
	}
	defer publisher.Close() //nolint:errcheck

	metrics := observability.NewMetrics()

	campaigns := repository.NewGormCampaignRepo(db)
	contacts := repository.NewGormContactRepo(db)
	sendRecords := repository.NewGormSendRecordRepo(db)
	events := repository.NewGormEmailEventRepo(db)
	quotas := repository.NewGormQuotaRepo(db)

	throttle, err := infraredis.NewSendThrottle(rdb, cfg.SendRateLimitPerSec)
	if err != nil {
		return err
	}
	locker, err := infraredis.NewCampaignLocker(rdb, cfg.CampaignLockTTL)
	if err != nil {
		return err
	}
	mailer, err := provider.NewResendMailer(cfg.ResendAPIURL, cfg.ResendAPIKey)
	if err != nil {
		return err
	}

	quotaTracker, err := service.NewQuotaTracker(quotas, cfg.QuotaPeriod(), cfg.DefaultMonthlyLimit, logger.Named("quota"))
	if err != nil {
		return err
	}
	quotaTracker.SetMetrics(metrics)

	quotaResetter, err := service.NewQuotaResetter(quotaTracker, cfg.QuotaResetInterval, logger.Named("quota-reset"))
	if err != nil {
		return err
	}

	warmupService, err := service.NewWarmupService(campaigns, contacts, sendRecords, logger.Named("warmup"))
	if err != nil {
		return err
	}

	batchSender, err := service.NewBatchSender(service.BatchSenderDeps{
		Campaigns:   campaigns,
		Contacts:    contacts,
		SendRecords: sendRecords,
		Quota:       quotaTracker,
		Mailer:      mailer,
		Throttle:    throttle,
		Locker:      locker,
		Logger:      logger.Named("batch"),
		Metrics:     metrics,
		DefaultFrom: cfg.MailFrom,
		Concurrency: cfg.BatchConcurrency,
	})
	if err != nil {
		return err
	}

	processor, err := service.NewEventProcessor(sendRecords, events, publisher, logger.Named("events"))
	if err != nil {
		return err
	}

	webhookService, err := service.NewWebhookService(
		webhook.NewSignatureVerifier(cfg.WebhookTolerance()),
		webhook.NewNormalizer(),
		processor,
		service.WebhookSecrets{
			ResendSecret:      cfg.ResendWebhookSecret,
			MailgunSigningKey: cfg.MailgunWebhookSigningKey,
		},
		cfg.WebhookVerificationDisabled(),
		logger.Named("webhooks"),
	)
	if err != nil {
		return err
	}
	webhookService.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		AppName:               "warmup-engine",
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	app.Use(fiberrecover.New())
	app.Use(handler.RequestContext())
	app.Use(metrics.HTTPMiddleware())

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app, map[string]handler.ReadinessCheck{
		"postgres": handler.PostgresCheck(sqlDB),
		"redis":    handler.RedisCheck(rdb),
		"rabbitmq": handler.BrokerCheck(broker),
	})
	if err := handler.RegisterWarmupRoutes(app, warmupService, batchSender, validator.New()); err != nil {
		return err
	}
	if err := handler.RegisterQuotaRoutes(app, quotaTracker); err != nil {
		return err
	}
	if err := handler.RegisterWebhookRoutes(app, webhookService); err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("warmup-engine api started", zap.Int("port", cfg.APIPort), zap.String("env", cfg.AppEnv))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		return quotaResetter.Start(groupCtx)
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down warmup-engine api")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("warmup-engine api stopped")
	return nil
}
