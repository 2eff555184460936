package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-upgrade-agent/internal/api/http"
	"github.com/spec-kit/ticket-upgrade-agent/internal/api/http/handlers"
	"github.com/spec-kit/ticket-upgrade-agent/internal/auth"
	"github.com/spec-kit/ticket-upgrade-agent/internal/chat"
	"github.com/spec-kit/ticket-upgrade-agent/internal/config"
	"github.com/spec-kit/ticket-upgrade-agent/internal/dataprovider"
	"github.com/spec-kit/ticket-upgrade-agent/internal/events"
	"github.com/spec-kit/ticket-upgrade-agent/internal/integration/notification"
	"github.com/spec-kit/ticket-upgrade-agent/internal/integration/payment"
	"github.com/spec-kit/ticket-upgrade-agent/internal/observability"
	"github.com/spec-kit/ticket-upgrade-agent/internal/persistence"
	"github.com/spec-kit/ticket-upgrade-agent/internal/pricing"
	"github.com/spec-kit/ticket-upgrade-agent/internal/repository"
	"github.com/spec-kit/ticket-upgrade-agent/internal/service"
	"github.com/spec-kit/ticket-upgrade-agent/internal/session"
	"github.com/spec-kit/ticket-upgrade-agent/internal/toolcall"
	"github.com/spec-kit/ticket-upgrade-agent/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, cfg.App.Name, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var store *repository.Store
	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.DefaultMigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		store = repository.NewPostgresStore(pg.PoolHandle())
	} else {
		mem := repository.NewMemoryStore()
		repository.SeedDemo(mem, time.Now().UTC())
		store = mem.Store()
		logger.Info("seeded in-memory store with demo customers")
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	tokens := auth.NewTokenManager(cfg.Tools.TokenSecret, cfg.Tools.TokenTTL, cfg.App.Name)

	provider := dataprovider.NewProvider(dataprovider.Dependencies{
		Store:      store,
		Logger:     logger.Named("dataprovider"),
		Metrics:    metrics,
		StaleAfter: cfg.Tools.StaleAfter,
	})

	var invoker toolcall.Invoker
	switch cfg.Tools.Mode {
	case config.ToolsModeRemote:
		remote, err := toolcall.NewHTTPInvoker(toolcall.HTTPInvokerConfig{
			BaseURL: cfg.Tools.RemoteURL,
			Timeout: cfg.Tools.CallTimeout,
			Tokens:  auth.NewServiceTokenSource(tokens, cfg.App.Name, auth.ScopeToolsInvoke),
		})
		if err != nil {
			logger.Fatal("failed to build remote tool invoker", zap.Error(err))
		}
		invoker = remote
	default:
		invoker = toolcall.NewLocalInvoker(provider, cfg.Tools.CallTimeout)
	}

	weekendDays, err := pricing.ParseWeekdays(cfg.Pricing.WeekendDays)
	if err != nil {
		logger.Fatal("invalid PRICING_WEEKEND_DAYS", zap.Error(err))
	}
	blackout, err := pricing.ParseDates(cfg.Pricing.BlackoutDates)
	if err != nil {
		logger.Fatal("invalid PRICING_BLACKOUT_DATES", zap.Error(err))
	}
	engine := pricing.NewEngine(pricing.Config{
		Currency:            cfg.Pricing.Currency,
		WeekendMultiplierBP: cfg.Pricing.WeekendMultiplierBP,
		WeekendDays:         weekendDays,
		QuoteDays:           cfg.Pricing.QuoteDays,
		MinLeadDays:         cfg.Pricing.MinLeadDays,
		BlackoutDates:       blackout,
	})

	var payments payment.Gateway = payment.Disabled{}
	if cfg.Payment.BaseURL != "" {
		gateway, err := payment.NewHTTPGateway(payment.HTTPGatewayConfig{
			BaseURL: cfg.Payment.BaseURL,
			Timeout: cfg.Payment.Timeout,
		})
		if err != nil {
			logger.Fatal("failed to build payment gateway", zap.Error(err))
		}
		payments = gateway
	} else {
		logger.Warn("PAYMENT_BASE_URL not provided; orders cannot be confirmed")
	}

	var notifier notification.Notifier = notification.NewLogNotifier(logger.Named("notification"))
	if len(cfg.Notification.KafkaBrokers) > 0 {
		kafkaNotifier, err := notification.NewKafkaNotifier(notification.KafkaConfig{
			Brokers:     cfg.Notification.KafkaBrokers,
			Topic:       cfg.Notification.KafkaTopic,
			MaxAttempts: cfg.Notification.MaxAttempts,
		})
		if err != nil {
			logger.Fatal("failed to build kafka notifier", zap.Error(err))
		}
		notifier = kafkaNotifier
	}
	defer notifier.Close() //nolint:errcheck

	dispatcher := events.NewInMemoryDispatcher()
	notifyQueue := worker.NewQueue(cfg.Notification.QueueSize, cfg.Notification.Workers,
		cfg.Notification.SendTimeout, logger.Named("notification"))
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, notifier, logger.Named("notification"), metrics), notifyQueue)
	worker.StartAuditWorker(dispatcher, logger.Named("audit"))

	upgradeService := service.NewUpgradeService(service.UpgradeDependencies{
		Invoker:    invoker,
		Engine:     engine,
		Payments:   payments,
		Dispatcher: dispatcher,
		Logger:     logger.Named("orchestrator"),
		Metrics:    metrics,
		Retry: service.RetryPolicy{
			MaxAttempts: cfg.Tools.MaxAttempts,
			BaseBackoff: cfg.Tools.BackoffBase,
			MaxBackoff:  cfg.Tools.BackoffMax,
		},
	})

	chatRouter := chat.NewRouter(chat.RouterDependencies{
		Upgrades: upgradeService,
		Logger:   logger.Named("chat"),
		Metrics:  metrics,
		Currency: cfg.Pricing.Currency,
	})

	var locker session.Locker = session.NewMemoryLocker(cfg.Session.LockWait)
	if redis.Enabled() {
		locker = session.NewRedisLocker(redis.Client, cfg.Session.LockTTL, cfg.Session.LockWait, logger.Named("session"))
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
		BodyLimit:             256 * 1024,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Chat:           handlers.NewChatHandler(chatRouter, locker, logger.Named("chat")),
		Tools:          handlers.NewToolsHandler(provider),
		Upgrades:       handlers.NewUpgradesHandler(upgradeService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, logger),
		Metrics:        metrics,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("tools_mode", string(cfg.Tools.Mode)))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Notification.SendTimeout)
	defer cancel()
	if err := notifyQueue.Shutdown(drainCtx); err != nil {
		logger.Warn("notification queue not drained", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
