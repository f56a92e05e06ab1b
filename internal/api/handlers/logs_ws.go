package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/duonordic/sitedeck/internal/api/middleware"
	"github.com/duonordic/sitedeck/internal/models"
)

// logsPollInterval is how often the log stream re-fetches provider
// logs while a build is in flight.
const logsPollInterval = 3 * time.Second

// LogsStream handles GET /v1/deployments/{deploymentID}/logs/ws.
// It streams build logs over a websocket, sending the full log text
// whenever it grows and closing once the deployment reaches a terminal
// status.
func (h *DeploymentHandler) LogsStream(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	deploymentID := chi.URLParam(r, "deploymentID")

	// Ownership check before the upgrade; websocket errors after this
	// point cannot carry an HTTP status.
	if _, err := h.orchestrator.Get(r.Context(), tenantID, deploymentID); err != nil {
		WriteError(w, err)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade websocket", "error", err)
		return
	}
	defer conn.Close()

	// Drain client frames so pong/close handling keeps working.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(logsPollInterval)
	defer ticker.Stop()

	var lastSent string
	for {
		logs, err := h.orchestrator.GetLogs(r.Context(), tenantID, deploymentID)
		if err != nil {
			h.logger.Warn("log stream fetch failed", "deployment_id", deploymentID, "error", err)
			return
		}
		if logs != lastSent {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(logs)); err != nil {
				return
			}
			lastSent = logs
		}

		dep, err := h.orchestrator.Get(r.Context(), tenantID, deploymentID)
		if err != nil {
			return
		}
		switch dep.Status {
		case models.DeploymentStatusRunning, models.DeploymentStatusFailed,
			models.DeploymentStatusStopped, models.DeploymentStatusDeleting:
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(dep.Status)))
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
