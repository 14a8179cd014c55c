package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/buildpulse/internal/api/alerts"
	"github.com/good-yellow-bee/buildpulse/internal/api/dashboard"
	"github.com/good-yellow-bee/buildpulse/internal/api/middleware"
	"github.com/good-yellow-bee/buildpulse/internal/api/rules"
	"github.com/good-yellow-bee/buildpulse/internal/api/stream"
	"github.com/good-yellow-bee/buildpulse/internal/api/webhooks"
)

// setupRouter creates and configures the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Rate limiter for the public webhook surface
	ipLimiter := middleware.NewRateLimiter(s.config.RateLimitPerIP)

	// Global middleware
	r.Use(middleware.RequestLogger(s.config.Verbose))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Instrument)

	webhookHandler := webhooks.NewHandler(s.deps.Ingester)
	dashboardHandler := dashboard.NewHandler(s.deps.Dashboard)
	ruleHandler := rules.NewHandler(s.deps.Storage.Rules(), s.deps.Registry, s.deps.Cooldowns)
	alertHandler := alerts.NewHandler(s.deps.Storage.Alerts(), s.deps.Broker)
	streamHandler := stream.NewHandler(s.deps.Broker, s.config.StreamMaxDuration)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Ingestion (public to CI systems, rate limited by IP)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(ipLimiter))
			r.Post("/webhooks/{source}", webhookHandler.Receive)
		})

		// Dashboard read path
		r.Get("/dashboard/metrics", dashboardHandler.Metrics)

		// Rule management
		r.Route("/rules", func(r chi.Router) {
			r.Get("/", ruleHandler.List)
			r.Post("/", ruleHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", ruleHandler.GetByID)
				r.Put("/", ruleHandler.Update)
				r.Patch("/enabled", ruleHandler.SetEnabled)
				r.Delete("/", ruleHandler.Delete)
			})
		})

		// Fired alerts
		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", alertHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", alertHandler.GetByID)
				r.Post("/acknowledge", alertHandler.Acknowledge)
				r.Post("/resolve", alertHandler.Resolve)
			})
		})

		// Real-time event stream
		r.Get("/events", streamHandler.Events)
	})

	// Health checks (public, no rate limit)
	r.Get("/health", s.healthHandler.Health)
	r.Get("/health/live", s.healthHandler.Live)
	r.Get("/health/ready", s.healthHandler.Ready)

	return r
}
