package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	apierrors "github.com/duonordic/sitedeck/internal/api/errors"
	"github.com/duonordic/sitedeck/internal/reconciler"
)

// maxWebhookBody bounds webhook payload size.
const maxWebhookBody = 1 << 20

// WebhookHandler receives hosting provider webhook callbacks.
type WebhookHandler struct {
	reconciler *reconciler.Reconciler
	logger     *slog.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(rec *reconciler.Reconciler, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{
		reconciler: rec,
		logger:     logger,
	}
}

// Handle handles POST /webhooks/hosting. The signature is verified over
// the raw body before any parsing. Verification failures are the only
// error responses; once a payload is authentic, receipt is always
// acknowledged even if applying the update fails.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		WriteError(w, apierrors.NewInternalError("Failed to read request body"))
		return
	}

	signature := r.Header.Get("x-vercel-signature")
	if err := h.reconciler.VerifySignature(body, signature); err != nil {
		if errors.Is(err, reconciler.ErrNoSecret) {
			h.logger.Error("webhook received but no secret configured")
			WriteError(w, apierrors.NewInternalError("Webhook secret not configured"))
			return
		}
		h.logger.Warn("webhook signature rejected", "remote_addr", r.RemoteAddr)
		WriteError(w, apierrors.NewUnauthorizedError("Invalid webhook signature"))
		return
	}

	// Post-verification failures are server-side: the payload was
	// authentic, so the caller gets the 500 shape, never a 4xx.
	deploymentID, err := h.reconciler.Process(r.Context(), body)
	if err != nil {
		h.logger.Error("webhook processing failed", "error", err)
		WriteError(w, apierrors.NewInternalError("Failed to process webhook"))
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"received":     true,
		"deploymentId": deploymentID,
	})
}
