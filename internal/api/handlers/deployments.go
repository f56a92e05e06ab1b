package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	apierrors "github.com/duonordic/sitedeck/internal/api/errors"
	"github.com/duonordic/sitedeck/internal/api/middleware"
	"github.com/duonordic/sitedeck/internal/models"
	"github.com/duonordic/sitedeck/internal/orchestrator"
)

// DeploymentHandler handles deployment-related HTTP requests.
type DeploymentHandler struct {
	orchestrator *orchestrator.Orchestrator
	validate     *validator.Validate
	logger       *slog.Logger
}

// NewDeploymentHandler creates a new deployment handler.
func NewDeploymentHandler(orch *orchestrator.Orchestrator, logger *slog.Logger) *DeploymentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeploymentHandler{
		orchestrator: orch,
		validate:     validator.New(),
		logger:       logger,
	}
}

// CreateDeploymentRequest represents the request body for creating a deployment.
type CreateDeploymentRequest struct {
	TemplateID   string              `json:"template_id" validate:"required"`
	Name         string              `json:"name" validate:"max=255"`
	Subdomain    string              `json:"subdomain" validate:"required,max=63"`
	CustomDomain string              `json:"custom_domain,omitempty" validate:"omitempty,fqdn"`
	EnvVars      map[string]string   `json:"env_vars,omitempty"`
	BuildConfig  *models.BuildConfig `json:"build_config,omitempty"`
}

// UpdateEnvRequest represents the request body for updating environment
// variables.
type UpdateEnvRequest struct {
	EnvVars map[string]string `json:"env_vars" validate:"required"`
}

// Create handles POST /v1/deployments.
func (h *DeploymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())

	var req CreateDeploymentRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, apierrors.NewValidationError(err.Error()))
		return
	}

	dep, err := h.orchestrator.Create(r.Context(), tenant, &orchestrator.CreateRequest{
		TemplateID:   req.TemplateID,
		Name:         req.Name,
		Subdomain:    req.Subdomain,
		CustomDomain: req.CustomDomain,
		EnvOverrides: req.EnvVars,
		BuildConfig:  req.BuildConfig,
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, dep)
}

// List handles GET /v1/deployments.
func (h *DeploymentHandler) List(w http.ResponseWriter, r *http.Request) {
	deployments, err := h.orchestrator.List(r.Context(), middleware.GetTenantID(r.Context()))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"deployments": deployments})
}

// Get handles GET /v1/deployments/{deploymentID}.
func (h *DeploymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	dep, err := h.orchestrator.Get(r.Context(), middleware.GetTenantID(r.Context()), chi.URLParam(r, "deploymentID"))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, dep)
}

// Redeploy handles POST /v1/deployments/{deploymentID}/redeploy.
func (h *DeploymentHandler) Redeploy(w http.ResponseWriter, r *http.Request) {
	dep, err := h.orchestrator.Redeploy(r.Context(), middleware.GetTenantID(r.Context()), chi.URLParam(r, "deploymentID"))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, dep)
}

// Stop handles POST /v1/deployments/{deploymentID}/stop.
func (h *DeploymentHandler) Stop(w http.ResponseWriter, r *http.Request) {
	dep, err := h.orchestrator.Stop(r.Context(), middleware.GetTenantID(r.Context()), chi.URLParam(r, "deploymentID"))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, dep)
}

// UpdateEnv handles PUT /v1/deployments/{deploymentID}/env.
func (h *DeploymentHandler) UpdateEnv(w http.ResponseWriter, r *http.Request) {
	var req UpdateEnvRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, apierrors.NewValidationError(err.Error()))
		return
	}

	dep, err := h.orchestrator.UpdateEnvironment(r.Context(), middleware.GetTenantID(r.Context()), chi.URLParam(r, "deploymentID"), req.EnvVars)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, dep)
}

// Delete handles DELETE /v1/deployments/{deploymentID}.
func (h *DeploymentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.orchestrator.Delete(r.Context(), middleware.GetTenantID(r.Context()), chi.URLParam(r, "deploymentID")); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// Logs handles GET /v1/deployments/{deploymentID}/logs.
func (h *DeploymentHandler) Logs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.orchestrator.GetLogs(r.Context(), middleware.GetTenantID(r.Context()), chi.URLParam(r, "deploymentID"))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

// Metrics handles GET /v1/deployments/{deploymentID}/metrics.
func (h *DeploymentHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.orchestrator.GetMetrics(r.Context(), middleware.GetTenantID(r.Context()), chi.URLParam(r, "deploymentID"))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"metrics": metrics})
}

// Sync handles POST /v1/deployments/{deploymentID}/sync.
func (h *DeploymentHandler) Sync(w http.ResponseWriter, r *http.Request) {
	dep, err := h.orchestrator.SyncStatus(r.Context(), middleware.GetTenantID(r.Context()), chi.URLParam(r, "deploymentID"))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, dep)
}
