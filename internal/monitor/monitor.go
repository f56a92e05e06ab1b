// Package monitor runs periodic sweeps over deployments: provider
// health polling and cleanup of builds stuck past the staleness cutoff.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/duonordic/sitedeck/internal/models"
	"github.com/duonordic/sitedeck/internal/orchestrator"
	"github.com/duonordic/sitedeck/internal/store"
)

// Config holds monitor configuration.
type Config struct {
	// StaleAfter is how long a deployment may sit in provisioning or
	// building before the staleness sweep deletes it. Defaults to 30m.
	StaleAfter time.Duration
}

// Monitor sweeps deployments. Each item is handled independently; a
// failure on one deployment never aborts the rest of the batch.
type Monitor struct {
	store        store.Store
	hosting      orchestrator.HostingAPI
	orchestrator *orchestrator.Orchestrator
	staleAfter   time.Duration
	logger       *slog.Logger
}

// New creates a monitor.
func New(st store.Store, hostingClient orchestrator.HostingAPI, orch *orchestrator.Orchestrator, cfg *Config, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}
	return &Monitor{
		store:        st,
		hosting:      hostingClient,
		orchestrator: orch,
		staleAfter:   staleAfter,
		logger:       logger,
	}
}

// SweepHealth polls the provider for every running deployment and logs
// the unhealthy ones. It observes and reports; remediation is left to
// operators and the webhook flow.
func (m *Monitor) SweepHealth(ctx context.Context) error {
	deployments, err := m.store.Deployments().ListByStatus(ctx, models.DeploymentStatusRunning)
	if err != nil {
		return err
	}

	unhealthy := 0
	for _, dep := range deployments {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, err := m.hosting.GetDeployment(ctx, dep.ProviderDeploymentID)
		if err != nil {
			m.logger.Warn("health poll failed",
				slog.String("deployment_id", dep.ID),
				slog.String("tenant_id", dep.TenantID),
				slog.String("error", err.Error()))
			continue
		}

		if resp.State == models.ProviderStateError {
			unhealthy++
			m.logger.Error("running deployment unhealthy at provider",
				slog.String("deployment_id", dep.ID),
				slog.String("tenant_id", dep.TenantID),
				slog.String("provider_deployment_id", dep.ProviderDeploymentID),
				slog.String("provider_state", string(resp.State)))
		}
	}

	m.logger.Info("health sweep complete",
		slog.Int("checked", len(deployments)),
		slog.Int("unhealthy", unhealthy))
	return nil
}

// SweepStale deletes deployments stuck in provisioning or building past
// the staleness cutoff. Deletion goes through the orchestrator so the
// provider-side cleanup stays best-effort and the local soft-delete
// authoritative.
func (m *Monitor) SweepStale(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-m.staleAfter)
	stale, err := m.store.Deployments().ListStale(ctx, cutoff,
		models.DeploymentStatusProvisioning,
		models.DeploymentStatusBuilding,
	)
	if err != nil {
		return err
	}

	deleted := 0
	for _, dep := range stale {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		m.logger.Warn("deleting stale deployment",
			slog.String("deployment_id", dep.ID),
			slog.String("tenant_id", dep.TenantID),
			slog.String("status", string(dep.Status)),
			slog.Time("created_at", dep.CreatedAt))

		if err := m.orchestrator.Delete(ctx, dep.TenantID, dep.ID); err != nil {
			m.logger.Error("stale deployment cleanup failed",
				slog.String("deployment_id", dep.ID),
				slog.String("error", err.Error()))
			continue
		}
		deleted++
	}

	m.logger.Info("staleness sweep complete",
		slog.Int("candidates", len(stale)),
		slog.Int("deleted", deleted))
	return nil
}
