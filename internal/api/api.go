// Package api provides the HTTP REST API server.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/good-yellow-bee/buildpulse/internal/api/dashboard"
	"github.com/good-yellow-bee/buildpulse/internal/api/health"
	"github.com/good-yellow-bee/buildpulse/internal/api/rules"
	"github.com/good-yellow-bee/buildpulse/internal/api/webhooks"
	"github.com/good-yellow-bee/buildpulse/internal/events"
	"github.com/good-yellow-bee/buildpulse/internal/storage"
)

// Config contains HTTP API server configuration.
type Config struct {
	Address           string
	RateLimitPerIP    int           // webhook requests per minute per source IP
	StreamMaxDuration time.Duration // max lifetime for SSE connections
	Verbose           bool
}

// SetDefaults applies default values for missing configuration.
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.RateLimitPerIP == 0 {
		c.RateLimitPerIP = 300 // 300 requests per minute
	}
	if c.StreamMaxDuration == 0 {
		c.StreamMaxDuration = 30 * time.Minute
	}
}

// Deps carries the components the API routes to.
type Deps struct {
	Storage   storage.Storage
	Ingester  webhooks.Ingester
	Dashboard dashboard.Provider
	Broker    *events.Broker
	Registry  rules.Invalidator
	Cooldowns rules.CooldownClearer
}

// Server is the HTTP API server.
type Server struct {
	config        *Config
	deps          Deps
	server        *http.Server
	healthHandler *health.Handler
}

// New creates a new API server.
func New(cfg *Config, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if deps.Ingester == nil {
		return nil, fmt.Errorf("ingester is required")
	}
	if deps.Dashboard == nil {
		return nil, fmt.Errorf("dashboard provider is required")
	}
	if deps.Broker == nil {
		return nil, fmt.Errorf("event broker is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("rule registry is required")
	}
	if deps.Cooldowns == nil {
		return nil, fmt.Errorf("cooldown tracker is required")
	}

	cfg.SetDefaults()

	s := &Server{
		config:        cfg,
		deps:          deps,
		healthHandler: health.NewHandler(),
	}
	s.healthHandler.RegisterChecker(health.NewStorageChecker(deps.Storage))

	router := s.setupRouter()

	s.server = &http.Server{
		Addr:        cfg.Address,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout is intentionally 0 (disabled) because the server
		// supports SSE streams that can last up to 30 minutes. A global
		// WriteTimeout would prematurely kill those long-lived connections.
		// Individual non-streaming handlers use context deadlines to bound
		// response time.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Run starts the HTTP server and blocks until context is canceled.
func (s *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		log.Printf("HTTP API listening on %s", s.config.Address)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Printf("shutting down HTTP API server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.config.Address
}

// RegisterHealthChecker adds a health checker to the server.
func (s *Server) RegisterHealthChecker(c health.Checker) {
	if s.healthHandler != nil {
		s.healthHandler.RegisterChecker(c)
	}
}
