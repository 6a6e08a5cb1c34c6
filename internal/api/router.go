package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/resumeflow/internal/api/handlers"
	"github.com/nikhilbhutani/resumeflow/internal/api/middleware"
	"github.com/nikhilbhutani/resumeflow/internal/auth"
	"github.com/nikhilbhutani/resumeflow/internal/config"
	"github.com/nikhilbhutani/resumeflow/internal/matching"
)

type Router struct {
	mux     *chi.Mux
	cfg     *config.Config
	svc     handlers.ResumeService
	checks  map[string]handlers.Pinger
	jwt     *auth.JWTMiddleware
	limiter *middleware.RateLimiter
	logger  *slog.Logger
}

// NewRouter wires the HTTP surface. ctx bounds the rate limiter's sweeper.
func NewRouter(ctx context.Context, cfg *config.Config, svc handlers.ResumeService, checks map[string]handlers.Pinger, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Router{
		mux:    chi.NewRouter(),
		cfg:    cfg,
		svc:    svc,
		checks: checks,
		jwt:    auth.NewJWTMiddleware(cfg.Auth.JWTSecret, logger),
		logger: logger,
	}
	if cfg.Server.RateLimitRPS > 0 {
		rt.limiter = middleware.NewRateLimiter(ctx, cfg.Server.RateLimitRPS, max(cfg.Server.RateLimitBurst, 1))
	}
	return rt
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(rt.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.Server.CORSOrigins))
	if rt.limiter != nil {
		r.Use(rt.limiter.Limit)
	}

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.checks)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	resumes := handlers.NewResumeHandler(rt.svc, rt.cfg.Pipeline.MaxFileSize(), matching.Mode(rt.cfg.Matching.DefaultMode), rt.logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.jwt.Authenticate)

		r.Post("/process-resume", resumes.ProcessResume)

		r.Route("/resumes", func(r chi.Router) {
			r.Post("/", resumes.Upload)
			r.Get("/{id}", resumes.Get)
			r.Get("/{id}/status", resumes.Status)
			r.Get("/{id}/matches", resumes.Matches)
			r.Post("/{id}/analyze", resumes.Analyze)
			r.Post("/{id}/find-matches", resumes.FindMatches)
		})
	})

	return r
}
