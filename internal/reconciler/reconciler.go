// Package reconciler applies hosting provider webhook events to local
// deployment state.
package reconciler

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/duonordic/sitedeck/internal/models"
	"github.com/duonordic/sitedeck/internal/store"
	"github.com/duonordic/sitedeck/internal/store/postgres"
)

// failedMessage is the fixed diagnostic recorded on deployment.error
// events.
const failedMessage = "Deployment failed on hosting provider"

// ErrNoSecret indicates the webhook secret is not configured. Callers
// must fail closed.
var ErrNoSecret = errors.New("webhook secret not configured")

// ErrBadSignature indicates the payload signature did not verify.
var ErrBadSignature = errors.New("webhook signature mismatch")

// Event is the provider's webhook payload shape.
type Event struct {
	Type    string `json:"type"`
	Payload struct {
		Deployment struct {
			ID    string               `json:"id"`
			URL   string               `json:"url"`
			State models.ProviderState `json:"state"`
		} `json:"deployment"`
	} `json:"payload"`
}

// Reconciler verifies webhook payloads and maps provider events onto
// the local status machine.
type Reconciler struct {
	deployments store.DeploymentStore
	secret      string
	logger      *slog.Logger
}

// New creates a reconciler. An empty secret is allowed at construction
// but every verification will fail closed.
func New(deployments store.DeploymentStore, secret string, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		deployments: deployments,
		secret:      secret,
		logger:      logger,
	}
}

// VerifySignature checks the provider signature over the raw request
// body. The signature is hex-encoded HMAC-SHA1 with a "sha1=" prefix;
// comparison is constant-time.
func (r *Reconciler) VerifySignature(body []byte, signature string) error {
	if r.secret == "" {
		return ErrNoSecret
	}
	if signature == "" {
		return ErrBadSignature
	}

	mac := hmac.New(sha1.New, []byte(r.secret))
	mac.Write(body)
	expected := "sha1=" + hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrBadSignature
	}
	return nil
}

// Process parses a verified payload and applies it to the matching
// deployment. Update failures are logged, never returned: the provider
// gets its receipt regardless. The returned id is the provider
// deployment id for the acknowledgement body.
func (r *Reconciler) Process(ctx context.Context, body []byte) (string, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return "", fmt.Errorf("parsing webhook payload: %w", err)
	}

	deploymentID := event.Payload.Deployment.ID
	if deploymentID == "" {
		return "", errors.New("webhook payload has no deployment id")
	}

	update := r.updateFor(&event)
	if update == nil {
		r.logger.Debug("ignoring webhook event type",
			slog.String("type", event.Type),
			slog.String("provider_deployment_id", deploymentID))
		return deploymentID, nil
	}

	if err := r.deployments.UpdateByProviderID(ctx, deploymentID, update); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			// Events for unknown deployments (deleted locally, or
			// created outside this control plane) are not ours to act on.
			r.logger.Debug("webhook for unknown deployment",
				slog.String("provider_deployment_id", deploymentID))
			return deploymentID, nil
		}
		r.logger.Error("applying webhook update",
			slog.String("type", event.Type),
			slog.String("provider_deployment_id", deploymentID),
			slog.String("error", err.Error()))
		return deploymentID, nil
	}

	r.logger.Info("webhook applied",
		slog.String("type", event.Type),
		slog.String("provider_deployment_id", deploymentID),
		slog.String("status", string(update.Status)))
	return deploymentID, nil
}

// updateFor maps an event onto a status update, or nil for event types
// the reconciler does not act on.
func (r *Reconciler) updateFor(event *Event) *store.DeploymentStatusUpdate {
	dep := event.Payload.Deployment

	switch event.Type {
	case "deployment", "deployment.created":
		update := &store.DeploymentStatusUpdate{
			Status: models.MapProviderState(dep.State),
		}
		if dep.URL != "" {
			update.DeploymentURL = urlPtr(dep.URL)
		}
		return update

	case "deployment.ready", "deployment.succeeded":
		now := time.Now().UTC()
		update := &store.DeploymentStatusUpdate{
			Status:         models.DeploymentStatusRunning,
			LastDeployedAt: &now,
		}
		if dep.URL != "" {
			update.DeploymentURL = urlPtr(dep.URL)
		}
		return update

	case "deployment.error":
		msg := failedMessage
		return &store.DeploymentStatusUpdate{
			Status:       models.DeploymentStatusFailed,
			ErrorMessage: &msg,
		}

	case "deployment.canceled":
		return &store.DeploymentStatusUpdate{
			Status: models.DeploymentStatusStopped,
		}

	default:
		return nil
	}
}

// urlPtr normalizes a provider host into a full https URL pointer.
func urlPtr(u string) *string {
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "https://" + u
	}
	return &u
}
