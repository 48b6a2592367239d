package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/agents"
	httptransport "github.com/spec-kit/triage-service/internal/api/http"
	"github.com/spec-kit/triage-service/internal/api/http/handlers"
	"github.com/spec-kit/triage-service/internal/auth"
	"github.com/spec-kit/triage-service/internal/classifier"
	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/helpdesk"
	"github.com/spec-kit/triage-service/internal/llm"
	"github.com/spec-kit/triage-service/internal/observability"
	"github.com/spec-kit/triage-service/internal/persistence"
	"github.com/spec-kit/triage-service/internal/repository"
	"github.com/spec-kit/triage-service/internal/scheduler"
	"github.com/spec-kit/triage-service/internal/service"
	"github.com/spec-kit/triage-service/internal/store"
	"github.com/spec-kit/triage-service/internal/workflow"
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

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations && pg.PoolHandle() != nil {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	kafkaSink := events.NewKafkaSink(cfg.Kafka, logger)
	if kafkaSink != nil {
		kafkaSink.RegisterAll(dispatcher)
		defer kafkaSink.Close() //nolint:errcheck
	}

	pool := pg.PoolHandle()
	var syncerDeps service.SyncerDependencies
	if pool != nil {
		syncerDeps = service.SyncerDependencies{
			TicketRepo:   repository.NewTicketRepository(pool),
			AnalysisRepo: repository.NewAnalysisRepository(pool),
			DraftRepo:    repository.NewDraftRepository(pool),
			CasebookRepo: repository.NewCasebookRepository(pool),
			RunRepo:      repository.NewScheduleRunRepository(pool),
		}
	}
	casebookIndex := persistence.NewCasebookIndex(redis)
	syncerDeps.Index = casebookIndex
	syncer := service.NewPersistenceSyncer(syncerDeps, logger, metrics)

	tickets := store.NewTicketStore()
	analyses := store.NewAnalysisStore()
	engine := workflow.NewEngine(tickets, dispatcher, logger)

	completer := llm.NewOpenAIClient(cfg.LLM)
	adapter := classifier.NewAdapter(completer, logger)
	router := agents.NewRouter(agents.DefaultAgents(), agents.DefaultRules())
	source := helpdesk.NewClient(cfg.Helpdesk)

	triage := service.NewTriageService(service.TriageDependencies{
		TicketStore:   tickets,
		AnalysisStore: analyses,
		Engine:        engine,
		Classifier:    adapter,
		Router:        router,
		Completer:     completer,
		Source:        source,
		Syncer:        syncer,
		Dispatcher:    dispatcher,
		Metrics:       metrics,
	}, logger)

	runner := scheduler.NewBatchRunner(triage, syncer, dispatcher, metrics, logger, cfg.Scheduler.InterCallDelay())

	var refresh scheduler.RefreshFunc
	if cfg.Scheduler.RefreshBeforeBatch {
		refresh = func(ctx context.Context) error {
			_, err := triage.RefreshTickets(ctx)
			return err
		}
	}
	timer := scheduler.NewTimer(runner, tickets.All, refresh, cfg.Scheduler, logger)
	timer.Start(ctx)
	defer timer.Stop()

	authMiddleware := auth.NewMiddleware(auth.NewTokenManager(cfg.Auth))

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tickets:        handlers.NewTicketsHandler(triage, tickets, analyses, engine, router),
		Drafts:         handlers.NewDraftsHandler(triage, engine),
		Casebook:       handlers.NewCasebookHandler(engine, casebookIndex, logger),
		Batch:          handlers.NewBatchHandler(runner, timer, triage, tickets, logger),
		Metrics:        handlers.NewMetricsHandler(metrics),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	logger.Info("triage service started", zap.String("addr", cfg.App.Addr()))

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
