package models

import "time"

// DeploymentStatus represents the current state of a deployment.
type DeploymentStatus string

const (
	DeploymentStatusPending      DeploymentStatus = "pending"
	DeploymentStatusQueued       DeploymentStatus = "queued"
	DeploymentStatusProvisioning DeploymentStatus = "provisioning"
	DeploymentStatusBuilding     DeploymentStatus = "building"
	DeploymentStatusRunning      DeploymentStatus = "running"
	DeploymentStatusStopped      DeploymentStatus = "stopped"
	DeploymentStatusFailed       DeploymentStatus = "failed"
	DeploymentStatusDeleting     DeploymentStatus = "deleting"
)

// ProviderState is a deployment state as reported by the hosting provider.
type ProviderState string

const (
	ProviderStateQueued   ProviderState = "QUEUED"
	ProviderStateBuilding ProviderState = "BUILDING"
	ProviderStateReady    ProviderState = "READY"
	ProviderStateError    ProviderState = "ERROR"
	ProviderStateCanceled ProviderState = "CANCELED"
)

// MapProviderState maps a provider-reported state onto the local status
// machine. The mapping is total: unrecognized states map to pending.
func MapProviderState(state ProviderState) DeploymentStatus {
	switch state {
	case ProviderStateQueued:
		return DeploymentStatusQueued
	case ProviderStateBuilding:
		return DeploymentStatusBuilding
	case ProviderStateReady:
		return DeploymentStatusRunning
	case ProviderStateError:
		return DeploymentStatusFailed
	case ProviderStateCanceled:
		return DeploymentStatusStopped
	default:
		return DeploymentStatusPending
	}
}

// BuildConfig holds optional build configuration forwarded to the
// hosting provider's project settings.
type BuildConfig struct {
	Framework       string `json:"framework,omitempty"`
	BuildCommand    string `json:"build_command,omitempty"`
	OutputDirectory string `json:"output_directory,omitempty"`
	InstallCommand  string `json:"install_command,omitempty"`
}

// Deployment represents one instance of a template deployed to hosting
// infrastructure for a tenant.
//
// ProviderDeploymentID starts as a time-based placeholder written before
// the provider call and is replaced once the provider responds; the row
// therefore exists durably even if the provider call never returns.
type Deployment struct {
	ID                   string            `json:"id"`
	TenantID             string            `json:"tenant_id"`
	TemplateID           string            `json:"template_id"`
	Name                 string            `json:"name"`
	Subdomain            string            `json:"subdomain"`
	CustomDomain         string            `json:"custom_domain,omitempty"`
	Status               DeploymentStatus  `json:"status"`
	EnvVars              map[string]string `json:"env_vars,omitempty"`
	BuildConfig          *BuildConfig      `json:"build_config,omitempty"`
	ProviderDeploymentID string            `json:"provider_deployment_id"`
	DeploymentURL        string            `json:"deployment_url,omitempty"`
	ErrorMessage         string            `json:"error_message,omitempty"`
	BuildLogs            string            `json:"build_logs,omitempty"`
	SSLEnabled           bool              `json:"ssl_enabled"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
	LastDeployedAt       *time.Time        `json:"last_deployed_at,omitempty"`
	DeletedAt            *time.Time        `json:"deleted_at,omitempty"`
}
