// Package api provides the HTTP API server for the control plane.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/duonordic/sitedeck/internal/api/handlers"
	"github.com/duonordic/sitedeck/internal/api/health"
	"github.com/duonordic/sitedeck/internal/api/middleware"
	"github.com/duonordic/sitedeck/internal/orchestrator"
	"github.com/duonordic/sitedeck/internal/reconciler"
	"github.com/duonordic/sitedeck/internal/store"
	"github.com/duonordic/sitedeck/internal/tenant"
	"github.com/duonordic/sitedeck/pkg/config"
)

// Version is the current version of the API server.
// This should be set at build time using ldflags.
var Version = "dev"

// Server represents the HTTP API server.
type Server struct {
	router        chi.Router
	httpServer    *http.Server
	store         store.Store
	orchestrator  *orchestrator.Orchestrator
	resolver      *tenant.Resolver
	reconciler    *reconciler.Reconciler
	config        *config.Config
	logger        *slog.Logger
	healthChecker *health.Checker
}

// NewServer creates a new API server with the given dependencies. The
// pinger is the store's connectivity probe used by the health endpoint.
func NewServer(cfg *config.Config, st store.Store, pinger health.Pinger, orch *orchestrator.Orchestrator, resolver *tenant.Resolver, rec *reconciler.Reconciler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		store:        st,
		orchestrator: orch,
		resolver:     resolver,
		reconciler:   rec,
		config:       cfg,
		logger:       logger,
	}

	s.healthChecker = health.NewChecker(Version)
	s.healthChecker.Register("database", pinger.Ping)
	s.healthChecker.RegisterSoft("webhook_secret", func(ctx context.Context) error {
		if cfg.Webhook.Secret == "" {
			return errors.New("webhook secret not configured")
		}
		return nil
	})

	s.setupRouter()
	return s
}

// setupRouter configures the router with middleware and routes.
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(middleware.Recovery(s.logger))
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// Health check endpoint (no tenant context required)
	r.Get("/health", s.healthChecker.Handler())

	// Provider webhook callbacks (public, signature-gated)
	webhookHandler := handlers.NewWebhookHandler(s.reconciler, s.logger)
	r.Post("/webhooks/hosting", webhookHandler.Handle)

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Every v1 route runs with a resolved tenant
		r.Use(middleware.TenantContext(s.resolver, s.logger))

		tenantHandler := handlers.NewTenantHandler(s.logger)
		r.Get("/tenants/current", tenantHandler.Current)

		templateHandler := handlers.NewTemplateHandler(s.store.Templates(), s.logger)
		r.Route("/templates", func(r chi.Router) {
			r.Get("/", templateHandler.List)
			r.Get("/{idOrSlug}", templateHandler.Get)
		})

		deploymentHandler := handlers.NewDeploymentHandler(s.orchestrator, s.logger)
		r.Route("/deployments", func(r chi.Router) {
			r.Post("/", deploymentHandler.Create)
			r.Get("/", deploymentHandler.List)
			r.Route("/{deploymentID}", func(r chi.Router) {
				r.Get("/", deploymentHandler.Get)
				r.Delete("/", deploymentHandler.Delete)
				r.Post("/redeploy", deploymentHandler.Redeploy)
				r.Post("/stop", deploymentHandler.Stop)
				r.Put("/env", deploymentHandler.UpdateEnv)
				r.Post("/sync", deploymentHandler.Sync)
				r.Get("/logs", deploymentHandler.Logs)
				r.Get("/logs/ws", deploymentHandler.LogsStream)
				r.Get("/metrics", deploymentHandler.Metrics)
			})
		})
	})

	s.router = r
}

// Start starts the HTTP server on the configured address.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.APIHost, s.config.APIPort)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr, "version", Version)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Router returns the router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}
