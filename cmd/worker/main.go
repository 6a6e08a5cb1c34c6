package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/resumeflow/internal/app"
	"github.com/nikhilbhutani/resumeflow/internal/config"
	"github.com/nikhilbhutani/resumeflow/internal/queue"
	"github.com/nikhilbhutani/resumeflow/internal/queue/workers"
	"github.com/nikhilbhutani/resumeflow/pkg/logger"
)

const concurrency = 10

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		slog.Error("failed to build logger", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(log)

	// the worker only ever consumes the queue
	cfg.Pipeline.Dispatch = "asynq"
	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	srv := asynq.NewServer(
		queue.RedisOpt(cfg.Redis),
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				queue.QueueCritical: 6,
				queue.QueueDefault:  3,
			},
		},
	)

	registry := queue.NewHandlersRegistry()
	worker := workers.NewResumeWorker(a.Runner, log)
	if err := registry.RegisterAll(queue.TaskTypes(), asynq.HandlerFunc(worker.ProcessTask)); err != nil {
		log.Error("failed to register handlers", "error", err)
		os.Exit(1)
	}

	log.Info("starting worker", "concurrency", concurrency, "task_types", registry.Types())
	if err := srv.Start(registry.Mux()); err != nil {
		log.Error("worker error", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	log.Info("shutting down worker...")
	srv.Shutdown()
	log.Info("worker stopped")
}
