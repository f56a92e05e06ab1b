// Package store provides database access interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/duonordic/sitedeck/internal/models"
)

// TenantStore defines operations for tenant management.
type TenantStore interface {
	// Create creates a new tenant.
	Create(ctx context.Context, tenant *models.Tenant) error
	// Get retrieves an active, non-deleted tenant by ID.
	Get(ctx context.Context, id string) (*models.Tenant, error)
	// GetBySlug retrieves an active, non-deleted tenant by slug.
	GetBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	// GetByDomain retrieves an active, non-deleted tenant by custom domain.
	GetByDomain(ctx context.Context, domain string) (*models.Tenant, error)
	// List retrieves non-deleted tenants, newest first.
	List(ctx context.Context, limit, offset int) ([]*models.Tenant, error)
	// Update updates an existing tenant.
	Update(ctx context.Context, tenant *models.Tenant) error
	// Delete soft-deletes a tenant by setting status cancelled and deleted_at.
	Delete(ctx context.Context, id string) error
}

// TemplateStore defines operations for the template catalog.
type TemplateStore interface {
	// Create creates a new template (unpublished).
	Create(ctx context.Context, template *models.Template) error
	// Get retrieves a published template by ID or slug.
	Get(ctx context.Context, idOrSlug string) (*models.Template, error)
	// List retrieves published templates ordered by popularity.
	List(ctx context.Context, limit, offset int) ([]*models.Template, error)
	// Update updates an existing template.
	Update(ctx context.Context, template *models.Template) error
	// Publish marks a template as published.
	Publish(ctx context.Context, id string) error
	// IncrementDeployCount bumps the template's deploy counter.
	IncrementDeployCount(ctx context.Context, id string) error
}

// DeploymentStore defines operations for deployment management.
type DeploymentStore interface {
	// Create creates a new deployment. A unique-constraint violation on
	// subdomain or custom domain surfaces as ErrDuplicateKey.
	Create(ctx context.Context, deployment *models.Deployment) error
	// Get retrieves a deployment by ID.
	Get(ctx context.Context, id string) (*models.Deployment, error)
	// GetByProviderID retrieves a deployment by its provider deployment ID.
	GetByProviderID(ctx context.Context, providerID string) (*models.Deployment, error)
	// GetBySubdomain retrieves the running, non-deleted deployment for a subdomain.
	GetBySubdomain(ctx context.Context, subdomain string) (*models.Deployment, error)
	// List retrieves all non-deleted deployments for a tenant, newest first.
	List(ctx context.Context, tenantID string) ([]*models.Deployment, error)
	// ListByStatus retrieves all non-deleted deployments with a given status.
	ListByStatus(ctx context.Context, statuses ...models.DeploymentStatus) ([]*models.Deployment, error)
	// ListStale retrieves non-deleted deployments in the given statuses
	// created before the cutoff.
	ListStale(ctx context.Context, cutoff time.Time, statuses ...models.DeploymentStatus) ([]*models.Deployment, error)
	// Update updates an existing deployment.
	Update(ctx context.Context, deployment *models.Deployment) error
	// UpdateByProviderID applies a webhook-driven status update located by
	// provider deployment ID. A missing row is a benign no-op and returns
	// ErrNotFound for the caller to ignore.
	UpdateByProviderID(ctx context.Context, providerID string, update *DeploymentStatusUpdate) error
	// CountTakenSubdomain reports whether a subdomain is taken among
	// non-deleted deployments.
	CountTakenSubdomain(ctx context.Context, subdomain string) (bool, error)
	// CountTakenDomain reports whether a custom domain is taken among
	// non-deleted deployments.
	CountTakenDomain(ctx context.Context, domain string) (bool, error)
}

// DeploymentStatusUpdate carries the fields a webhook or status poll is
// allowed to change. Nil optional fields leave the column untouched.
type DeploymentStatusUpdate struct {
	Status         models.DeploymentStatus
	DeploymentURL  *string
	ErrorMessage   *string
	BuildLogs      *string
	LastDeployedAt *time.Time // set when status becomes running
}

// AuditLogStore defines append-only audit log operations.
type AuditLogStore interface {
	// Create appends an audit log entry.
	Create(ctx context.Context, entry *models.AuditLog) error
}

// Store is the main interface for database operations.
type Store interface {
	// Tenants returns the TenantStore for tenant operations.
	Tenants() TenantStore
	// Templates returns the TemplateStore for template catalog operations.
	Templates() TemplateStore
	// Deployments returns the DeploymentStore for deployment operations.
	Deployments() DeploymentStore
	// AuditLogs returns the AuditLogStore for audit log operations.
	AuditLogs() AuditLogStore

	// WithTx executes the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// Otherwise, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error

	// Close closes the database connection.
	Close() error
}
