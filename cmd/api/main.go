package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nikhilbhutani/resumeflow/internal/api"
	"github.com/nikhilbhutani/resumeflow/internal/app"
	"github.com/nikhilbhutani/resumeflow/internal/config"
	"github.com/nikhilbhutani/resumeflow/internal/pipeline"
	"github.com/nikhilbhutani/resumeflow/pkg/logger"
)

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

	dispatcher, drain, err := a.Dispatcher()
	if err != nil {
		log.Error("failed to build dispatcher", "error", err)
		os.Exit(1)
	}

	svc := pipeline.NewService(a.Store, a.Objects, a.Runner, dispatcher, cfg.Pipeline, log)
	router := api.NewRouter(ctx, cfg, svc, a.Checks, log)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("starting API server", "addr", cfg.Addr(), "dispatch", cfg.Pipeline.Dispatch)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced shutdown", "error", err)
	}
	if err := drain(shutdownCtx); err != nil {
		log.Warn("pipeline tasks still running at shutdown", "error", err)
	}
	log.Info("server stopped")
}
