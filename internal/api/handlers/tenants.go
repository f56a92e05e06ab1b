package handlers

import (
	"log/slog"
	"net/http"

	"github.com/duonordic/sitedeck/internal/api/middleware"
)

// TenantHandler serves tenant context endpoints.
type TenantHandler struct {
	logger *slog.Logger
}

// NewTenantHandler creates a new tenant handler.
func NewTenantHandler(logger *slog.Logger) *TenantHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TenantHandler{logger: logger}
}

// Current handles GET /v1/tenants/current. It echoes the tenant the
// middleware resolved for this request.
func (h *TenantHandler) Current(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, middleware.GetTenant(r.Context()))
}
