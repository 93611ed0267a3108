package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/complaint-engine/internal/api/http"
	"github.com/spec-kit/complaint-engine/internal/api/http/handlers"
	"github.com/spec-kit/complaint-engine/internal/auth"
	"github.com/spec-kit/complaint-engine/internal/clock"
	"github.com/spec-kit/complaint-engine/internal/config"
	"github.com/spec-kit/complaint-engine/internal/events"
	"github.com/spec-kit/complaint-engine/internal/observability"
	"github.com/spec-kit/complaint-engine/internal/persistence"
	"github.com/spec-kit/complaint-engine/internal/repository"
	"github.com/spec-kit/complaint-engine/internal/service"
	"github.com/spec-kit/complaint-engine/internal/sla"
	"github.com/spec-kit/complaint-engine/internal/worker"
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

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	complaintRepo := repository.NewComplaintRepository(pool)
	staffRepo := repository.NewStaffRepository(pool)
	officeRepo := repository.NewOfficeRepository(pool)
	historyRepo := repository.NewComplaintHistoryRepository(pool)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	clk := clock.System()
	calculator := sla.NewCalculator(sla.PolicyFromConfig(cfg.SLA))

	workload := service.NewWorkloadTracker(complaintRepo, redis.ClientHandle(), cfg.Workload.CacheTTL(), clk, logger)

	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		ComplaintRepo: complaintRepo,
		StaffRepo:     staffRepo,
		OfficeRepo:    officeRepo,
		HistoryRepo:   historyRepo,
		Workload:      workload,
		Calculator:    calculator,
		Dispatcher:    dispatcher,
		Metrics:       metrics,
		Clock:         clk,
	})
	assignment := service.NewAssignmentService(service.AssignmentDependencies{
		Lifecycle:     lifecycle,
		ComplaintRepo: complaintRepo,
		StaffRepo:     staffRepo,
		OfficeRepo:    officeRepo,
		Workload:      workload,
	})
	sweeper := service.NewSweepService(service.SweepDependencies{
		ComplaintRepo: complaintRepo,
		HistoryRepo:   historyRepo,
		Calculator:    calculator,
		Dispatcher:    dispatcher,
		Metrics:       metrics,
		Clock:         clk,
		Logger:        logger,
	})

	notifications := service.NewNotificationService(dispatcher, service.NewLogNotifier(logger), logger)
	notifications.RegisterHandlers()

	var sweepWorker *worker.SweepWorker
	if cfg.Sweep.Enabled {
		sweepWorker = worker.NewSweepWorker(sweeper, cfg.Sweep.Interval(), logger)
		sweepWorker.Start(ctx)
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret)
	authMiddleware := auth.NewAuthMiddleware(tokens, staffRepo)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Complaints:     handlers.NewComplaintsHandler(lifecycle, assignment, sweeper),
		Staff:          handlers.NewStaffHandler(assignment),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if sweepWorker != nil {
		sweepWorker.Stop()
	}
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
