// Package main provides the entry point for the deployment monitor.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/duonordic/sitedeck/internal/hosting"
	"github.com/duonordic/sitedeck/internal/monitor"
	"github.com/duonordic/sitedeck/internal/orchestrator"
	pgstore "github.com/duonordic/sitedeck/internal/store/postgres"
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

	storeCfg := pgstore.DefaultConfig(cfg.DatabaseDSN)
	store, err := pgstore.NewPostgresStore(storeCfg, log.Logger)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

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

	orch := orchestrator.New(store, hostingClient, &orchestrator.Config{
		BaseDomain: cfg.Tenant.BaseDomain,
	}, log.Logger)

	mon := monitor.New(store, hostingClient, orch, &monitor.Config{
		StaleAfter: cfg.Monitor.StaleAfter,
	}, log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := cron.New()

	if _, err := c.AddFunc(cfg.Monitor.HealthSchedule, func() {
		if err := mon.SweepHealth(ctx); err != nil {
			log.Error("health sweep failed", "error", err)
		}
	}); err != nil {
		log.Error("invalid health schedule", "schedule", cfg.Monitor.HealthSchedule, "error", err)
		os.Exit(1)
	}

	if _, err := c.AddFunc(cfg.Monitor.StalenessSchedule, func() {
		if err := mon.SweepStale(ctx); err != nil {
			log.Error("staleness sweep failed", "error", err)
		}
	}); err != nil {
		log.Error("invalid staleness schedule", "schedule", cfg.Monitor.StalenessSchedule, "error", err)
		os.Exit(1)
	}

	log.Info("starting deployment monitor",
		"health_schedule", cfg.Monitor.HealthSchedule,
		"staleness_schedule", cfg.Monitor.StalenessSchedule,
		"stale_after", cfg.Monitor.StaleAfter.String(),
	)
	c.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig)

	cancel()
	<-c.Stop().Done()
	log.Info("monitor stopped")
}
