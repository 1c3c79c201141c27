package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-chat/internal/advisory"
	httptransport "github.com/spec-kit/helpdesk-chat/internal/api/http"
	"github.com/spec-kit/helpdesk-chat/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-chat/internal/auth"
	"github.com/spec-kit/helpdesk-chat/internal/config"
	"github.com/spec-kit/helpdesk-chat/internal/events"
	"github.com/spec-kit/helpdesk-chat/internal/observability"
	"github.com/spec-kit/helpdesk-chat/internal/persistence"
	"github.com/spec-kit/helpdesk-chat/internal/realtime"
	"github.com/spec-kit/helpdesk-chat/internal/service"
	"github.com/spec-kit/helpdesk-chat/internal/storage"
	"github.com/spec-kit/helpdesk-chat/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, persistence.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}
	stores := persistence.NewStores(pg)

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var broker realtime.Broker
	if cfg.Realtime.Broker == config.BrokerRedis && redis != nil {
		broker = realtime.NewRedisBroker(redis.Client, cfg.Realtime.RedisChannel, logger)
	}
	hub := realtime.NewHub(realtime.Options{
		SendBuffer: cfg.Realtime.SendBuffer,
		Broker:     broker,
		Logger:     logger,
		Metrics:    metrics,
	})
	go func() {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("realtime broker stopped", zap.Error(err))
		}
	}()

	dispatcher := events.NewInMemoryDispatcher()
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(ctx, notificationService, logger)
	historyService := service.NewHistoryService(stores.Tickets, stores.History, logger)
	historyService.RegisterHandlers(dispatcher)

	var advisor service.Advisor
	if client := advisory.NewOllamaClient(cfg.Advisory, logger); client != nil {
		advisor = client
	}
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		Advisor: advisor,
		Logger:  logger,
		Metrics: metrics,
	})
	timelineService := service.NewTimelineService(service.TimelineDependencies{
		TicketRepo:  stores.Tickets,
		MessageRepo: stores.Messages,
		FileRepo:    stores.Files,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:     stores.Tickets,
		TechnicianRepo: stores.Technicians,
		Assignment:     assignmentService,
		Timeline:       timelineService,
		Broadcaster:    hub,
		ClosePrompts:   hub,
		Dispatcher:     dispatcher,
		Logger:         logger,
		Metrics:        metrics,
		FallbackAny:    cfg.Assignment.FallbackAny,
	})

	sink, err := storage.NewLocalSink(cfg.Upload, logger)
	if err != nil {
		logger.Fatal("failed to prepare upload directory", zap.Error(err))
	}
	chatService := service.NewChatService(service.ChatDependencies{
		Tickets:        ticketService,
		Timeline:       timelineService,
		Rooms:          hub,
		Uploads:        sink,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		Logger:         logger,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		CustomerRepo:   stores.Customers,
		TechnicianRepo: stores.Technicians,
		TokenManager:   tokens,
	})
	authMiddleware := auth.NewAuthMiddleware(tokens, stores.Customers, stores.Technicians)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		BodyLimit:    int(cfg.Upload.MaxBytes) + 1<<20,
		ErrorHandler: httptransport.ErrorHandler(logger),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, hub),
		Customers:      handlers.NewCustomersHandler(authService),
		Technicians:    handlers.NewTechniciansHandler(authService, ticketService),
		Tickets:        handlers.NewTicketsHandler(ticketService, timelineService, chatService, historyService),
		Chat:           handlers.NewChatHandler(hub, chatService, cfg.Realtime.WriteTimeout(), logger),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
		UploadDir:      sink.Dir(),
		UploadPrefix:   sink.Prefix(),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
	notificationService.Wait()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
