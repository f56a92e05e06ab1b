package models

import "time"

// TenantStatus represents the lifecycle state of a tenant.
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusTrial     TenantStatus = "trial"
	TenantStatusCancelled TenantStatus = "cancelled"
)

// PlanType represents a tenant's subscription tier.
type PlanType string

const (
	PlanFree       PlanType = "free"
	PlanStarter    PlanType = "starter"
	PlanPro        PlanType = "pro"
	PlanEnterprise PlanType = "enterprise"
)

// Tenant represents an isolated customer workspace identified by slug
// and optional custom domain. Tenants are never hard-deleted; DeletedAt
// plus a cancelled status marks soft deletion.
type Tenant struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Slug        string         `json:"slug"`
	Domain      string         `json:"domain,omitempty"`
	Plan        PlanType       `json:"plan"`
	Status      TenantStatus   `json:"status"`
	Config      map[string]any `json:"config,omitempty"`
	TrialEndsAt *time.Time     `json:"trial_ends_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   *time.Time     `json:"deleted_at,omitempty"`
}

// HasFeature reports whether a boolean feature flag is enabled in the
// tenant's configuration.
func (t *Tenant) HasFeature(feature string) bool {
	features, ok := t.Config["features"].(map[string]any)
	if !ok {
		return false
	}
	enabled, ok := features[feature].(bool)
	return ok && enabled
}
