package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/campushub/helpdesk-service/internal/api/dto"
	httptransport "github.com/campushub/helpdesk-service/internal/api/http"
	"github.com/campushub/helpdesk-service/internal/api/http/handlers"
	"github.com/campushub/helpdesk-service/internal/auth"
	"github.com/campushub/helpdesk-service/internal/config"
	"github.com/campushub/helpdesk-service/internal/events"
	"github.com/campushub/helpdesk-service/internal/mail"
	"github.com/campushub/helpdesk-service/internal/messaging"
	"github.com/campushub/helpdesk-service/internal/observability"
	"github.com/campushub/helpdesk-service/internal/persistence"
	"github.com/campushub/helpdesk-service/internal/realtime"
	"github.com/campushub/helpdesk-service/internal/repository"
	"github.com/campushub/helpdesk-service/internal/service"
	"github.com/campushub/helpdesk-service/internal/worker"
)

type repositories struct {
	users    repository.UserRepository
	issues   repository.IssueRepository
	messages repository.MessageRepository
	history  repository.HistoryRepository
	direct   repository.DirectMessageRepository
}

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.DefaultMigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	repos := buildRepositories(pg)
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	validator := dto.NewValidator()

	performanceService := service.NewPerformanceService(service.PerformanceDependencies{
		UserRepo:   repos.users,
		IssueRepo:  repos.issues,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	lifecycleService := service.NewLifecycleService(service.LifecycleDependencies{
		IssueRepo:        repos.issues,
		MessageRepo:      repos.messages,
		HistoryRepo:      repos.history,
		Performance:      performanceService,
		Dispatcher:       dispatcher,
		Recorder:         metrics,
		Logger:           logger,
		ResolutionWindow: cfg.Lifecycle.ResolutionWindow(),
	})
	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo: repos.users,
		Logger:   logger,
	})
	chatService := service.NewChatService(service.ChatDependencies{
		UserRepo:    repos.users,
		MessageRepo: repos.direct,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), repos.users)

	var wg sync.WaitGroup
	background := func(run func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run()
		}()
	}

	hub := realtime.NewHub(cfg.Realtime.SendBuffer, logger)
	var (
		registry realtime.Registry = realtime.NewMemoryRegistry()
		sender   realtime.Sender   = hub
	)
	if cfg.Realtime.RedisPresence && redis.Enabled() {
		presence := realtime.NewRedisRegistry(redis.Client, cfg.Realtime.PresenceKey, cfg.Realtime.PresenceTTL(), logger)
		background(func() { presence.Run(ctx) })
		registry = presence
		fanout := realtime.NewRedisFanout(redis.Client, cfg.Realtime.FanoutChannel, hub, logger)
		sender = fanout
		ready := make(chan struct{})
		background(func() {
			if err := fanout.Run(ctx, ready); err != nil && ctx.Err() == nil {
				logger.Error("realtime fanout stopped", zap.Error(err))
			}
		})
		select {
		case <-ready:
		case <-time.After(5 * time.Second):
			logger.Warn("realtime fanout subscription not confirmed")
		}
	}
	notifier := realtime.NewNotifier(registry, sender, logger)
	gateway := realtime.NewGateway(realtime.GatewayDependencies{
		Hub:      hub,
		Registry: registry,
		Notifier: notifier,
		Users:    repos.users,
		Gauge:    metrics,
		Logger:   logger,
	})

	var exporter service.EventExporter
	if cfg.AMQP.URL != "" {
		publisher, err := messaging.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
		if err != nil {
			logger.Warn("event export disabled", zap.Error(err))
		} else {
			defer publisher.Close() //nolint:errcheck
			exporter = publisher
		}
	}

	var mailer service.ResolutionMailer
	if cfg.Mail.Host != "" {
		smtp, err := mail.NewMailer(mail.Config{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		}, logger)
		if err != nil {
			logger.Warn("mail disabled", zap.Error(err))
		} else {
			queue := worker.NewMailQueue(smtp, 0, logger)
			background(func() { queue.Run(ctx) })
			mailer = queue
		}
	}

	worker.StartNotificationWorker(service.NotificationDependencies{
		Dispatcher: dispatcher,
		Notifier:   notifier,
		Exporter:   exporter,
		Mailer:     mailer,
		UserRepo:   repos.users,
		Logger:     logger,
	})

	sweeper := worker.NewExpirySweeper(lifecycleService, cfg.Lifecycle.SweepInterval(), logger)
	background(func() { sweeper.Run(ctx) })

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, httptransport.MiddlewareConfig{
		Timeout:     cfg.App.RequestTimeout(),
		CORSOrigins: cfg.App.CORSOrigins,
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:             handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:               handlers.NewAuthHandler(authService, validator, cfg.App.Env == "production"),
		DepartmentMessages: handlers.NewDepartmentMessagesHandler(lifecycleService, performanceService, validator),
		Stats:              handlers.NewStatsHandler(performanceService),
		Users:              handlers.NewUsersHandler(notifier),
		Messages:           handlers.NewMessagesHandler(chatService, validator),
		AuthMiddleware:     authMiddleware,
		Metrics:            metrics.Handler(),
		SocketUpgrade:      realtime.Upgrade(auth.UserFromContext),
		Socket:             gateway.Handler(cfg.Realtime.WriteTimeout()),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.ShutdownWithTimeout(10 * time.Second)
	cancel()
	wg.Wait()
}

func buildRepositories(pg *persistence.Postgres) repositories {
	if !pg.Enabled() {
		store := repository.NewMemoryStore()
		return repositories{
			users:    store.Users(),
			issues:   store.Issues(),
			messages: store.Messages(),
			history:  store.History(),
			direct:   store.DirectMessages(),
		}
	}
	pool := pg.PoolHandle()
	return repositories{
		users:    repository.NewUserRepository(pool),
		issues:   repository.NewIssueRepository(pool),
		messages: repository.NewMessageRepository(pool),
		history:  repository.NewHistoryRepository(pool),
		direct:   repository.NewDirectMessageRepository(pool),
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
