// Package app wires the shared pipeline components for cmd/api and
// cmd/worker from one Config.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/resumeflow/internal/analysis"
	"github.com/nikhilbhutani/resumeflow/internal/api/handlers"
	"github.com/nikhilbhutani/resumeflow/internal/audit"
	"github.com/nikhilbhutani/resumeflow/internal/cache"
	"github.com/nikhilbhutani/resumeflow/internal/config"
	"github.com/nikhilbhutani/resumeflow/internal/database"
	"github.com/nikhilbhutani/resumeflow/internal/document"
	"github.com/nikhilbhutani/resumeflow/internal/llm"
	"github.com/nikhilbhutani/resumeflow/internal/lock"
	"github.com/nikhilbhutani/resumeflow/internal/matching"
	"github.com/nikhilbhutani/resumeflow/internal/ocr"
	"github.com/nikhilbhutani/resumeflow/internal/pipeline"
	"github.com/nikhilbhutani/resumeflow/internal/queue"
	"github.com/nikhilbhutani/resumeflow/internal/repository"
	"github.com/nikhilbhutani/resumeflow/internal/repository/memory"
	"github.com/nikhilbhutani/resumeflow/internal/repository/postgres"
	"github.com/nikhilbhutani/resumeflow/internal/skills"
	"github.com/nikhilbhutani/resumeflow/internal/storage"
)

type attemptAudit interface {
	audit.AttemptLog
	llm.UsageRecorder
}

type App struct {
	Config  *config.Config
	Store   repository.Store
	Objects storage.Storage
	Runner  *pipeline.Runner
	Checks  map[string]handlers.Pinger

	logger  *slog.Logger
	closers []func()
}

// New connects the backends selected in cfg. Postgres is used when
// DATABASE_URL is set, Redis when the queue is enabled or REDIS_ADDR answers.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Checks: make(map[string]handlers.Pinger), logger: logger}

	var attempts attemptAudit
	if cfg.Database.URL != "" {
		pool, err := a.openPostgres(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Store = postgres.New(pool)
		attempts = audit.NewService(pool)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory repositories")
		a.Store = memory.New()
		attempts = audit.NewMemory()
	}

	locker, err := a.openLocker(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("storage: %w", err)
	}
	a.Objects = objects

	ocrEngine := ocr.New(cfg.OCR, logger)
	var recognizer document.OCR = ocrEngine
	if !ocrEngine.Available(ctx) {
		logger.Warn("tesseract not found, scanned documents will fail extraction", "binary", cfg.OCR.Tesseract)
		recognizer = nil
	}

	ai := llm.NewGateway(cfg.LLM, attempts, logger)
	reconciler := skills.NewReconciler(a.Store, logger)
	analyzer := analysis.NewOrchestrator(ai, a.Store, reconciler, logger)
	matcher := matching.NewOrchestrator(a.Store, matching.NewGenerator(ai, cfg.Matching.GenerativeCount, logger), cfg.Matching, logger)

	if err := a.seedCatalog(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.Runner = pipeline.NewRunner(pipeline.Deps{
		Store:     a.Store,
		Objects:   objects,
		Extractor: document.NewEngine(recognizer, logger),
		Analyzer:  analyzer,
		Matcher:   matcher,
		Executor:  pipeline.NewExecutor(attempts, cfg.Pipeline, logger),
		Locker:    locker,
		Logger:    logger,
	}, cfg.Pipeline)

	return a, nil
}

func (a *App) openPostgres(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := database.NewPool(ctx, a.Config.Database, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pool.Close)
	a.Checks["database"] = pool

	if err := database.RunMigrations(ctx, pool, database.MigrationSource(a.Config.Database.MigrationsPath), a.logger); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return pool, nil
}

func (a *App) openLocker(ctx context.Context) (lock.Locker, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Addr,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})
	c := cache.NewCache(rdb)
	if err := c.Ping(ctx); err != nil {
		rdb.Close()
		if a.Config.Pipeline.Dispatch == "asynq" {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.logger.Warn("redis unavailable, using in-process locks", "error", err)
		return lock.NewMemory(), nil
	}
	a.closers = append(a.closers, func() { rdb.Close() })
	a.Checks["redis"] = c
	return lock.NewRedisLocker(c), nil
}

func (a *App) seedCatalog(ctx context.Context) error {
	catalog, err := matching.LoadCatalog(a.Config.Matching.CatalogPath)
	if err != nil {
		return err
	}
	n, err := matching.Seed(ctx, a.Store, catalog)
	if err != nil {
		return err
	}
	source := a.Config.Matching.CatalogPath
	if source == "" {
		source = "built-in"
	}
	a.logger.Info("job catalogue seeded", "jobs", n, "source", source)
	return nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Dispatcher returns the configured task dispatcher and a function that
// drains it on shutdown.
func (a *App) Dispatcher() (pipeline.Dispatcher, func(context.Context) error, error) {
	switch a.Config.Pipeline.Dispatch {
	case "inline":
		d := pipeline.NewInlineDispatcher(a.Runner, a.Config.Pipeline.TaskTimeout, a.logger)
		return d, d.Wait, nil
	case "asynq":
		c := queue.NewClient(a.Config.Redis, a.Config.Pipeline.TaskTimeout)
		return c, func(context.Context) error { return c.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown dispatch mode %q", a.Config.Pipeline.Dispatch)
}
