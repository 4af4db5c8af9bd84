// Package api assembles the HTTP surface of the serve binary: widget
// assets, the thread read API, and comment submission.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Symbiosis-Lab/moss-social/internal/api/middleware"
	"github.com/Symbiosis-Lab/moss-social/internal/handlers"
	"github.com/Symbiosis-Lab/moss-social/internal/page"
)

// Options carries the router's dependencies.
type Options struct {
	Handler *handlers.Handler

	// Limiter is nil when Redis is not configured; rate limiting is
	// then skipped entirely.
	Limiter *middleware.RateLimiter

	// PagesDir, when set, serves the injected site from this directory
	// instead of the JSON root endpoint.
	PagesDir string
}

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, opts Options) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(16 * 1024)) // 16KB max body
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	if opts.Limiter != nil {
		r.Use(opts.Limiter.Middleware)
	}

	// CORS - the widget calls in from any static site
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := opts.Handler

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/healthz", h.Health)

	// Widget assets (loader script, stylesheet)
	r.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.FS(page.Assets()))))

	// Interaction API
	r.Get("/thread", h.GetThread)
	r.Post("/comment", h.PostComment)

	// The injected site itself, when serving it is our job too
	if opts.PagesDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(opts.PagesDir)))
	} else {
		r.Get("/", h.Root)
	}

	return r
}
