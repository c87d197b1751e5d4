package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/studyplan-backend/internal/clients/predictor"
	"github.com/yungbote/studyplan-backend/internal/data/aggregates"
	"github.com/yungbote/studyplan-backend/internal/data/db"
	"github.com/yungbote/studyplan-backend/internal/data/repos"
	"github.com/yungbote/studyplan-backend/internal/data/seed"
	httpserver "github.com/yungbote/studyplan-backend/internal/http"
	httpH "github.com/yungbote/studyplan-backend/internal/http/handlers"
	"github.com/yungbote/studyplan-backend/internal/modules/planning"
	"github.com/yungbote/studyplan-backend/internal/observability"
	"github.com/yungbote/studyplan-backend/internal/platform/clock"
	"github.com/yungbote/studyplan-backend/internal/platform/logger"
	"github.com/yungbote/studyplan-backend/internal/realtime"
	"github.com/yungbote/studyplan-backend/internal/realtime/bus"
	"github.com/yungbote/studyplan-backend/internal/services"
)

type Repos struct {
	Skills   repos.SkillRepo
	Days     repos.PlanDayRepo
	Attempts repos.AttemptRecordRepo
	Notes    repos.ReviewNoteRepo
	Runs     repos.RegenerationRunRepo
}

type App struct {
	Log       *logger.Logger
	Cfg       Config
	DB        *db.Service
	Repos     Repos
	Bus       bus.Bus
	StudyPlan services.StudyPlanService
	Server    *httpserver.Server

	shutdownOTel func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	shutdownOTel := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	})
	metrics := observability.Init(log)

	store, err := db.Open(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := store.AutoMigrateAll(); err != nil {
		_ = store.Close()
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	theDB := store.DB()

	log.Info("Wiring repos...")
	reposet := Repos{
		Skills:   repos.NewSkillRepo(theDB, log),
		Days:     repos.NewPlanDayRepo(theDB, log),
		Attempts: repos.NewAttemptRecordRepo(theDB, log),
		Notes:    repos.NewReviewNoteRepo(theDB, log),
		Runs:     repos.NewRegenerationRunRepo(theDB, log),
	}

	if cfg.SkillCatalogFile != "" {
		catalog, err := seed.LoadCatalogFile(cfg.SkillCatalogFile)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		if err := seed.Apply(ctx, log, reposet.Skills, catalog); err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	eventBus, err := bus.NewRedisBus(log)
	if err != nil {
		log.Warn("redis plan bus unavailable, publishing in-process only", "error", err)
		eventBus = bus.NewMemoryBus()
	}

	planClock := clock.New(cfg.Location)
	aggDeps := aggregates.StudyPlanAggregateDeps{
		Base: aggregates.BaseDeps{
			DB:            theDB,
			Log:           log,
			Runner:        aggregates.NewGormTxRunner(theDB),
			Hooks:         aggregates.NewObservabilityHooks(metrics),
			CASGuard:      aggregates.NewCASGuard(theDB),
			WriteAttempts: cfg.WriteAttempts,
		},
		Skills:         reposet.Skills,
		Days:           reposet.Days,
		Attempts:       reposet.Attempts,
		Notes:          reposet.Notes,
		Runs:           reposet.Runs,
		Weekend:        planning.NewIncorrectRatePlanner(),
		Clock:          planClock,
		Policy:         cfg.Policy,
		PredictTimeout: cfg.PredictTimeout,
		StaleRunAfter:  cfg.StaleRunAfter,
	}
	switch client, err := predictor.NewFromEnv(log); {
	case err == nil:
		aggDeps.Predictor = client
	case errors.Is(err, predictor.ErrNotConfigured):
		log.Info("mastery predictor not configured, adaptive week uses frequency rank")
	default:
		_ = store.Close()
		return nil, fmt.Errorf("init predictor client: %w", err)
	}

	studyPlan := services.NewStudyPlanService(services.StudyPlanServiceDeps{
		Log:       log,
		Aggregate: aggregates.NewStudyPlanAggregate(aggDeps),
		Skills:    reposet.Skills,
		Days:      reposet.Days,
		Attempts:  reposet.Attempts,
		Notes:     reposet.Notes,
		Runs:      reposet.Runs,
		Bus:       eventBus,
		Clock:     planClock,
		Policy:    cfg.Policy,
		Metrics:   metrics,
	})

	server := httpserver.NewServer(httpserver.RouterConfig{
		Log:              log,
		Metrics:          metrics,
		CORSOrigins:      cfg.CORSOrigins,
		AdminRoutes:      cfg.AdminRoutes,
		Tracing:          true,
		ServiceName:      cfg.ServiceName,
		StudyPlanHandler: httpH.NewStudyPlanHandler(studyPlan),
		HealthHandler:    httpH.NewHealthHandler(store.Ping),
	})

	return &App{
		Log:          log,
		Cfg:          cfg,
		DB:           store,
		Repos:        reposet,
		Bus:          eventBus,
		StudyPlan:    studyPlan,
		Server:       server,
		shutdownOTel: shutdownOTel,
	}, nil
}

// Run serves HTTP until ctx is canceled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.Bus.StartForwarder(gctx, func(evt realtime.PlanEvent) {
			a.Log.Debug("plan event", "event", evt.Event, "learner_id", evt.LearnerID, "version", evt.PlanVersion, "days", evt.DayNumbers)
		})
	})
	g.Go(func() error {
		a.Log.Info("server listening", "port", a.Cfg.Port)
		return a.Server.Run(":" + a.Cfg.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.Log.Info("shutting down server")
		return a.Server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Bus != nil {
		if err := a.Bus.Close(); err != nil {
			a.Log.Warn("close plan bus", "error", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Log.Warn("close database", "error", err)
		}
	}
	if a.shutdownOTel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdownOTel(ctx); err != nil {
			a.Log.Warn("otel shutdown", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
