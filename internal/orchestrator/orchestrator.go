// Package orchestrator coordinates deployment lifecycle operations
// between the local store and the external hosting provider.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apierrors "github.com/duonordic/sitedeck/internal/api/errors"
	"github.com/duonordic/sitedeck/internal/hosting"
	"github.com/duonordic/sitedeck/internal/models"
	"github.com/duonordic/sitedeck/internal/store"
	"github.com/duonordic/sitedeck/internal/store/postgres"
)

// HostingAPI is the subset of the hosting client the orchestrator
// depends on.
type HostingAPI interface {
	CreateDeployment(ctx context.Context, req *hosting.CreateDeploymentRequest) (*hosting.DeploymentResponse, error)
	GetDeployment(ctx context.Context, deploymentID string) (*hosting.DeploymentResponse, error)
	DeleteDeployment(ctx context.Context, deploymentID string) error
	AssignDomain(ctx context.Context, projectName, domain string) error
	RemoveDomain(ctx context.Context, projectName, domain string) error
	GetDeploymentLogs(ctx context.Context, deploymentID string) ([]string, error)
}

// Config holds orchestrator configuration.
type Config struct {
	// BaseDomain is the platform apex used to predict deployment URLs.
	BaseDomain string
}

// CreateRequest is the input to Create.
type CreateRequest struct {
	TemplateID   string
	Name         string
	Subdomain    string
	CustomDomain string
	EnvOverrides map[string]string
	BuildConfig  *models.BuildConfig
}

// Metrics is a point-in-time provider-side view of a deployment.
type Metrics struct {
	ProviderState models.ProviderState `json:"provider_state"`
	URL           string               `json:"url,omitempty"`
	CheckedAt     time.Time            `json:"checked_at"`
}

// Orchestrator runs deployment lifecycle operations. Primary-path
// failures propagate to the caller; best-effort side effects (domain
// assignment, deploy counters, audit log) are logged and swallowed.
type Orchestrator struct {
	store      store.Store
	hosting    HostingAPI
	baseDomain string
	logger     *slog.Logger
}

// New creates an orchestrator.
func New(st store.Store, hostingClient HostingAPI, cfg *Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	baseDomain := cfg.BaseDomain
	if baseDomain == "" {
		baseDomain = "sitedeck.app"
	}
	return &Orchestrator{
		store:      st,
		hosting:    hostingClient,
		baseDomain: baseDomain,
		logger:     logger,
	}
}

// Create provisions a new deployment for a tenant. A durable local row
// with a placeholder provider id is written before the provider call so
// a crash mid-call leaves an inspectable record rather than nothing.
func (o *Orchestrator) Create(ctx context.Context, tenant *models.Tenant, req *CreateRequest) (*models.Deployment, error) {
	if !ValidSubdomain(req.Subdomain) {
		return nil, apierrors.NewValidationError(fmt.Sprintf("invalid subdomain %q: must be a lowercase DNS label", req.Subdomain))
	}
	if req.CustomDomain != "" && !ValidDomain(req.CustomDomain) {
		return nil, apierrors.NewValidationError(fmt.Sprintf("invalid custom domain %q", req.CustomDomain))
	}

	tmpl, err := o.store.Templates().Get(ctx, req.TemplateID)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return nil, apierrors.NewNotFoundError("template not found")
		}
		return nil, fmt.Errorf("loading template: %w", err)
	}

	taken, err := o.store.Deployments().CountTakenSubdomain(ctx, req.Subdomain)
	if err != nil {
		return nil, fmt.Errorf("checking subdomain: %w", err)
	}
	if taken {
		return nil, apierrors.NewConflictError(fmt.Sprintf("subdomain %q is already taken", req.Subdomain))
	}

	if req.CustomDomain != "" {
		taken, err := o.store.Deployments().CountTakenDomain(ctx, req.CustomDomain)
		if err != nil {
			return nil, fmt.Errorf("checking custom domain: %w", err)
		}
		if taken {
			return nil, apierrors.NewConflictError(fmt.Sprintf("domain %q is already taken", req.CustomDomain))
		}
	}

	return o.deploy(ctx, tenant, tmpl, req)
}

// Redeploy creates a fresh deployment attempt from an existing row's
// inputs. The original row keeps its identity and history; the new
// attempt gets its own row, and conflict checks are skipped because the
// subdomain legitimately belongs to this deployment lineage.
func (o *Orchestrator) Redeploy(ctx context.Context, tenantID, deploymentID string) (*models.Deployment, error) {
	existing, err := o.getOwned(ctx, tenantID, deploymentID)
	if err != nil {
		return nil, err
	}

	tenant, err := o.store.Tenants().Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return nil, apierrors.NewNotFoundError("tenant not found")
		}
		return nil, fmt.Errorf("loading tenant: %w", err)
	}

	tmpl, err := o.store.Templates().Get(ctx, existing.TemplateID)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return nil, apierrors.NewNotFoundError("template not found")
		}
		return nil, fmt.Errorf("loading template: %w", err)
	}

	return o.deploy(ctx, tenant, tmpl, &CreateRequest{
		TemplateID:   existing.TemplateID,
		Name:         existing.Name,
		Subdomain:    existing.Subdomain,
		CustomDomain: existing.CustomDomain,
		EnvOverrides: existing.EnvVars,
		BuildConfig:  existing.BuildConfig,
	})
}

// deploy runs the shared create path: parse the template repo, merge
// environment layers, persist a placeholder row, call the provider, and
// finish with best-effort side effects.
func (o *Orchestrator) deploy(ctx context.Context, tenant *models.Tenant, tmpl *models.Template, req *CreateRequest) (*models.Deployment, error) {
	gitSource, err := ParseGitURL(tmpl.RepoURL)
	if err != nil {
		return nil, apierrors.NewValidationError(fmt.Sprintf("template repository: %v", err))
	}

	name := req.Name
	if name == "" {
		name = req.Subdomain
	}

	deploymentURL := fmt.Sprintf("https://%s.%s", req.Subdomain, o.baseDomain)
	env := MergeEnv(tmpl.DefaultEnv, req.EnvOverrides, map[string]string{
		"APP_NAME":       name,
		"TENANT_ID":      tenant.ID,
		"DEPLOYMENT_URL": deploymentURL,
	})

	now := time.Now().UTC()
	dep := &models.Deployment{
		ID:                   uuid.New().String(),
		TenantID:             tenant.ID,
		TemplateID:           tmpl.ID,
		Name:                 name,
		Subdomain:            req.Subdomain,
		CustomDomain:         req.CustomDomain,
		Status:               models.DeploymentStatusPending,
		EnvVars:              env,
		BuildConfig:          req.BuildConfig,
		ProviderDeploymentID: fmt.Sprintf("temp-%d", now.UnixNano()),
		SSLEnabled:           true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := o.store.Deployments().Create(ctx, dep); err != nil {
		if errors.Is(err, postgres.ErrDuplicateKey) {
			return nil, apierrors.NewConflictError(fmt.Sprintf("subdomain %q is already taken", req.Subdomain))
		}
		return nil, fmt.Errorf("persisting deployment: %w", err)
	}

	projectName := ProjectName(fmt.Sprintf("%s-%s", tenant.Slug, req.Subdomain))

	hreq := &hosting.CreateDeploymentRequest{
		Name: projectName,
		GitSource: hosting.GitSource{
			Type: gitSource.Type,
			Repo: gitSource.Repo,
			Ref:  tmpl.RepoBranch,
		},
		Env: env,
	}
	if req.BuildConfig != nil {
		hreq.ProjectSettings = &hosting.ProjectSettings{
			Framework:       req.BuildConfig.Framework,
			BuildCommand:    req.BuildConfig.BuildCommand,
			OutputDirectory: req.BuildConfig.OutputDirectory,
			InstallCommand:  req.BuildConfig.InstallCommand,
		}
	}

	resp, err := o.hosting.CreateDeployment(ctx, hreq)
	if err != nil {
		o.logger.Error("provider deployment creation failed",
			slog.String("deployment_id", dep.ID),
			slog.String("tenant_id", tenant.ID),
			slog.String("error", err.Error()))

		// The causing message is recorded on the row so a failed attempt
		// stays diagnosable after the fact.
		dep.Status = models.DeploymentStatusFailed
		dep.ErrorMessage = err.Error()
		dep.UpdatedAt = time.Now().UTC()
		if uerr := o.store.Deployments().Update(ctx, dep); uerr != nil {
			o.logger.Error("recording deployment failure",
				slog.String("deployment_id", dep.ID),
				slog.String("error", uerr.Error()))
		}
		return nil, apierrors.NewUpstreamError(fmt.Sprintf("hosting provider rejected deployment: %v", err))
	}

	dep.ProviderDeploymentID = resp.ID
	dep.Status = models.MapProviderState(resp.State)
	if resp.URL != "" {
		dep.DeploymentURL = "https://" + resp.URL
	}
	dep.UpdatedAt = time.Now().UTC()
	if err := o.store.Deployments().Update(ctx, dep); err != nil {
		return nil, fmt.Errorf("recording provider deployment: %w", err)
	}

	if req.CustomDomain != "" {
		if err := o.hosting.AssignDomain(ctx, projectName, req.CustomDomain); err != nil {
			o.logger.Warn("custom domain assignment failed, deployment continues on default URL",
				slog.String("deployment_id", dep.ID),
				slog.String("domain", req.CustomDomain),
				slog.String("error", err.Error()))
		}
	}

	if err := o.store.Templates().IncrementDeployCount(ctx, tmpl.ID); err != nil {
		o.logger.Warn("incrementing template deploy count",
			slog.String("template_id", tmpl.ID),
			slog.String("error", err.Error()))
	}
	o.audit(ctx, tenant.ID, "deployment.create", dep.ID)

	return dep, nil
}

// List returns a tenant's non-deleted deployments, newest first.
func (o *Orchestrator) List(ctx context.Context, tenantID string) ([]*models.Deployment, error) {
	return o.store.Deployments().List(ctx, tenantID)
}

// Get returns a deployment owned by the tenant.
func (o *Orchestrator) Get(ctx context.Context, tenantID, deploymentID string) (*models.Deployment, error) {
	return o.getOwned(ctx, tenantID, deploymentID)
}

// GetBySubdomain returns the running deployment serving a subdomain.
func (o *Orchestrator) GetBySubdomain(ctx context.Context, subdomain string) (*models.Deployment, error) {
	dep, err := o.store.Deployments().GetBySubdomain(ctx, subdomain)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return nil, apierrors.NewNotFoundError("no running deployment for subdomain")
		}
		return nil, err
	}
	return dep, nil
}

// UpdateEnvironment overlays newVars onto the stored environment, then
// triggers a fresh deployment attempt so the change takes effect.
func (o *Orchestrator) UpdateEnvironment(ctx context.Context, tenantID, deploymentID string, newVars map[string]string) (*models.Deployment, error) {
	dep, err := o.getOwned(ctx, tenantID, deploymentID)
	if err != nil {
		return nil, err
	}

	dep.EnvVars = MergeEnv(dep.EnvVars, newVars)
	dep.UpdatedAt = time.Now().UTC()
	if err := o.store.Deployments().Update(ctx, dep); err != nil {
		return nil, fmt.Errorf("persisting environment: %w", err)
	}

	o.audit(ctx, tenantID, "deployment.update_env", dep.ID)

	return o.Redeploy(ctx, tenantID, deploymentID)
}

// Stop marks a deployment stopped. The provider has no stop concept for
// immutable deployments, so this is a local status flag only.
func (o *Orchestrator) Stop(ctx context.Context, tenantID, deploymentID string) (*models.Deployment, error) {
	dep, err := o.getOwned(ctx, tenantID, deploymentID)
	if err != nil {
		return nil, err
	}

	dep.Status = models.DeploymentStatusStopped
	dep.UpdatedAt = time.Now().UTC()
	if err := o.store.Deployments().Update(ctx, dep); err != nil {
		return nil, fmt.Errorf("stopping deployment: %w", err)
	}

	o.audit(ctx, tenantID, "deployment.stop", dep.ID)
	return dep, nil
}

// Delete soft-deletes a deployment. The local soft-delete is
// authoritative; remote deletion and domain removal are best-effort and
// never block it.
func (o *Orchestrator) Delete(ctx context.Context, tenantID, deploymentID string) error {
	dep, err := o.getOwned(ctx, tenantID, deploymentID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	dep.Status = models.DeploymentStatusDeleting
	dep.DeletedAt = &now
	dep.UpdatedAt = now
	if err := o.store.Deployments().Update(ctx, dep); err != nil {
		return fmt.Errorf("soft-deleting deployment: %w", err)
	}

	if !isPlaceholderProviderID(dep.ProviderDeploymentID) {
		if err := o.hosting.DeleteDeployment(ctx, dep.ProviderDeploymentID); err != nil {
			o.logger.Warn("remote deployment deletion failed, local delete stands",
				slog.String("deployment_id", dep.ID),
				slog.String("provider_deployment_id", dep.ProviderDeploymentID),
				slog.String("error", err.Error()))
		}
	}

	if dep.CustomDomain != "" {
		tenant, terr := o.store.Tenants().Get(ctx, tenantID)
		if terr == nil {
			projectName := ProjectName(fmt.Sprintf("%s-%s", tenant.Slug, dep.Subdomain))
			if err := o.hosting.RemoveDomain(ctx, projectName, dep.CustomDomain); err != nil {
				o.logger.Warn("custom domain removal failed, local delete stands",
					slog.String("deployment_id", dep.ID),
					slog.String("domain", dep.CustomDomain),
					slog.String("error", err.Error()))
			}
		}
	}

	o.audit(ctx, tenantID, "deployment.delete", dep.ID)
	return nil
}

// SyncStatus polls the provider for a deployment's current state and
// persists the mapped status.
func (o *Orchestrator) SyncStatus(ctx context.Context, tenantID, deploymentID string) (*models.Deployment, error) {
	dep, err := o.getOwned(ctx, tenantID, deploymentID)
	if err != nil {
		return nil, err
	}
	if isPlaceholderProviderID(dep.ProviderDeploymentID) {
		return dep, nil
	}

	resp, err := o.hosting.GetDeployment(ctx, dep.ProviderDeploymentID)
	if err != nil {
		return nil, apierrors.NewUpstreamError(fmt.Sprintf("fetching provider status: %v", err))
	}

	dep.Status = models.MapProviderState(resp.State)
	if resp.URL != "" {
		dep.DeploymentURL = "https://" + resp.URL
	}
	if dep.Status == models.DeploymentStatusRunning {
		now := time.Now().UTC()
		dep.LastDeployedAt = &now
	}
	dep.UpdatedAt = time.Now().UTC()
	if err := o.store.Deployments().Update(ctx, dep); err != nil {
		return nil, fmt.Errorf("persisting synced status: %w", err)
	}
	return dep, nil
}

// GetLogs fetches build logs from the provider. A fetch failure is a
// degraded read, not an error: the returned string explains what went
// wrong.
func (o *Orchestrator) GetLogs(ctx context.Context, tenantID, deploymentID string) (string, error) {
	dep, err := o.getOwned(ctx, tenantID, deploymentID)
	if err != nil {
		return "", err
	}
	if isPlaceholderProviderID(dep.ProviderDeploymentID) {
		return "No build logs yet: deployment has not reached the hosting provider.", nil
	}

	lines, err := o.hosting.GetDeploymentLogs(ctx, dep.ProviderDeploymentID)
	if err != nil {
		o.logger.Warn("fetching build logs",
			slog.String("deployment_id", dep.ID),
			slog.String("error", err.Error()))
		return fmt.Sprintf("Failed to fetch build logs: %v", err), nil
	}

	out := ""
	for _, line := range lines {
		out += line + "\n"
	}
	return out, nil
}

// GetMetrics reads the provider-side state of a deployment. A provider
// failure yields a nil metrics value, not an error.
func (o *Orchestrator) GetMetrics(ctx context.Context, tenantID, deploymentID string) (*Metrics, error) {
	dep, err := o.getOwned(ctx, tenantID, deploymentID)
	if err != nil {
		return nil, err
	}
	if isPlaceholderProviderID(dep.ProviderDeploymentID) {
		return nil, nil
	}

	resp, err := o.hosting.GetDeployment(ctx, dep.ProviderDeploymentID)
	if err != nil {
		o.logger.Warn("fetching provider metrics",
			slog.String("deployment_id", dep.ID),
			slog.String("error", err.Error()))
		return nil, nil
	}

	return &Metrics{
		ProviderState: resp.State,
		URL:           resp.URL,
		CheckedAt:     time.Now().UTC(),
	}, nil
}

// getOwned loads a deployment and enforces tenant ownership. A row
// belonging to another tenant is indistinguishable from a missing one.
func (o *Orchestrator) getOwned(ctx context.Context, tenantID, deploymentID string) (*models.Deployment, error) {
	dep, err := o.store.Deployments().Get(ctx, deploymentID)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return nil, apierrors.NewNotFoundError("deployment not found")
		}
		return nil, err
	}
	if dep.TenantID != tenantID || dep.DeletedAt != nil {
		return nil, apierrors.NewNotFoundError("deployment not found")
	}
	return dep, nil
}

// audit appends an audit log entry. Audit writes are best-effort.
func (o *Orchestrator) audit(ctx context.Context, tenantID, action, resourceID string) {
	entry := &models.AuditLog{
		ID:           uuid.New().String(),
		TenantID:     tenantID,
		Action:       action,
		ResourceType: "deployment",
		ResourceID:   resourceID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := o.store.AuditLogs().Create(ctx, entry); err != nil {
		o.logger.Warn("writing audit log",
			slog.String("action", action),
			slog.String("resource_id", resourceID),
			slog.String("error", err.Error()))
	}
}

// isPlaceholderProviderID reports whether the provider id is still the
// pre-call placeholder.
func isPlaceholderProviderID(id string) bool {
	return len(id) > 5 && id[:5] == "temp-"
}
