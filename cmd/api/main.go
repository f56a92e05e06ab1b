// Package main provides the entry point for the API server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/duonordic/sitedeck/internal/api"
	"github.com/duonordic/sitedeck/internal/hosting"
	"github.com/duonordic/sitedeck/internal/orchestrator"
	"github.com/duonordic/sitedeck/internal/reconciler"
	pgstore "github.com/duonordic/sitedeck/internal/store/postgres"
	"github.com/duonordic/sitedeck/internal/tenant"
	"github.com/duonordic/sitedeck/pkg/config"
	"github.com/duonordic/sitedeck/pkg/logger"
)

func main() {
	log := logger.New(slog.LevelInfo, true)

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Database store
	storeCfg := pgstore.DefaultConfig(cfg.DatabaseDSN)
	store, err := pgstore.NewPostgresStore(storeCfg, log.Logger)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Hosting provider client
	hostingClient, err := hosting.NewClient(&hosting.Config{
		APIToken:       cfg.Hosting.APIToken,
		TeamID:         cfg.Hosting.TeamID,
		BaseURL:        cfg.Hosting.BaseURL,
		RequestTimeout: cfg.Hosting.RequestTimeout,
	}, log.Logger)
	if err != nil {
		log.Error("failed to initialize hosting client", "error", err)
		os.Exit(1)
	}

	// Tenant resolution with its TTL cache
	cache := tenant.NewMemoryCache(cfg.Tenant.CacheTTL)
	resolver := tenant.NewResolver(store.Tenants(), cache, &tenant.Config{
		BaseDomain:      cfg.Tenant.BaseDomain,
		DevFallbackSlug: cfg.Tenant.DevFallbackSlug,
	}, log.Logger)

	// Deployment orchestration and webhook reconciliation
	orch := orchestrator.New(store, hostingClient, &orchestrator.Config{
		BaseDomain: cfg.Tenant.BaseDomain,
	}, log.Logger)
	rec := reconciler.New(store.Deployments(), cfg.Webhook.Secret, log.Logger)

	if cfg.Webhook.Secret == "" {
		log.Warn("webhook secret not configured, provider callbacks will be rejected")
	}

	server := api.NewServer(cfg, store, store, orch, resolver, rec, log.Logger)

	// Graceful shutdown on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
