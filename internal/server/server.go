// Package server wires the ingest pipeline, alerting, and HTTP surfaces
// together and owns their lifecycle.
package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/good-yellow-bee/buildpulse/internal/aggregator"
	"github.com/good-yellow-bee/buildpulse/internal/alerting"
	"github.com/good-yellow-bee/buildpulse/internal/api"
	"github.com/good-yellow-bee/buildpulse/internal/events"
	"github.com/good-yellow-bee/buildpulse/internal/metrics"
	"github.com/good-yellow-bee/buildpulse/internal/notifier"
	"github.com/good-yellow-bee/buildpulse/internal/storage"
)

// Config holds server configuration.
type Config struct {
	HTTPAddress       string
	MetricsAddress    string // empty disables the metrics endpoint
	RulesFile         string // empty disables YAML seeding and hot reload
	RateLimitPerIP    int
	StreamMaxDuration time.Duration
	SMTP              notifier.SMTPConfig // email channel; disabled when Host is empty
	Verbose           bool
}

// Server composes the full service.
type Server struct {
	config     *Config
	store      storage.Storage
	broker     *events.Broker
	registry   *alerting.StoreRegistry
	cooldowns  *alerting.CooldownTracker
	notifiers  *notifier.Registry
	dispatcher *alerting.Dispatcher
	pipeline   *Pipeline
	apiServer  *api.Server
}

// New creates a server around an opened, migrated store.
func New(cfg *Config, store storage.Storage) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}

	broker := events.NewBroker()
	registry := alerting.NewStoreRegistry(store.Rules())
	cooldowns := alerting.NewCooldownTracker()

	notifiers := notifier.NewRegistry()
	notifiers.Register(notifier.NewSlackNotifier())
	notifiers.Register(notifier.NewWebhookNotifier())
	if cfg.SMTP.Host != "" {
		email, err := notifier.NewEmailNotifier(cfg.SMTP)
		if err != nil {
			return nil, fmt.Errorf("email notifier: %w", err)
		}
		notifiers.Register(email)
	}

	agg := aggregator.New(store)
	evaluator := alerting.NewEvaluator(registry, store.Builds())
	dispatcher := alerting.NewDispatcher(store.Alerts(), notifiers, cooldowns, broker)
	pipeline := NewPipeline(agg, evaluator, dispatcher, broker, cfg.Verbose)

	apiServer, err := api.New(&api.Config{
		Address:           cfg.HTTPAddress,
		RateLimitPerIP:    cfg.RateLimitPerIP,
		StreamMaxDuration: cfg.StreamMaxDuration,
		Verbose:           cfg.Verbose,
	}, api.Deps{
		Storage:   store,
		Ingester:  pipeline,
		Dashboard: agg,
		Broker:    broker,
		Registry:  registry,
		Cooldowns: cooldowns,
	})
	if err != nil {
		return nil, fmt.Errorf("create API server: %w", err)
	}

	return &Server{
		config:     cfg,
		store:      store,
		broker:     broker,
		registry:   registry,
		cooldowns:  cooldowns,
		notifiers:  notifiers,
		dispatcher: dispatcher,
		pipeline:   pipeline,
		apiServer:  apiServer,
	}, nil
}

// Pipeline returns the ingest pipeline.
func (s *Server) Pipeline() *Pipeline {
	return s.pipeline
}

// Run starts every component and blocks until the context is canceled
// or one of them fails. In-flight notification deliveries are drained
// before returning.
func (s *Server) Run(ctx context.Context) error {
	if s.config.RulesFile != "" {
		if err := SeedRules(ctx, s.store.Rules(), s.registry, s.config.RulesFile); err != nil {
			return fmt.Errorf("seed rules: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.apiServer.Run(gctx)
	})

	if s.config.MetricsAddress != "" {
		metricsServer := metrics.NewServer(s.config.MetricsAddress)
		g.Go(func() error {
			go func() {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := metricsServer.Shutdown(shutdownCtx); err != nil {
					log.Printf("metrics server shutdown: %v", err)
				}
			}()
			return metricsServer.Start()
		})
	}

	if s.config.RulesFile != "" {
		g.Go(func() error {
			return WatchRules(gctx, s.store.Rules(), s.registry, s.config.RulesFile)
		})
	}

	err := g.Wait()

	log.Printf("draining in-flight notifications...")
	s.dispatcher.Drain()
	if cerr := s.notifiers.Close(); cerr != nil {
		log.Printf("close notifiers: %v", cerr)
	}

	return err
}
