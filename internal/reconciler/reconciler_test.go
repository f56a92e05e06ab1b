package reconciler

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/duonordic/sitedeck/internal/models"
	"github.com/duonordic/sitedeck/internal/store/storetest"
)

const testSecret = "whsec_test"

func sign(t *testing.T, secret string, body []byte) string {
	t.Helper()
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	return "sha1=" + hex.EncodeToString(mac.Sum(nil))
}

func eventBody(t *testing.T, eventType, providerID, url string, state models.ProviderState) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"type": eventType,
		"payload": map[string]any{
			"deployment": map[string]any{
				"id":    providerID,
				"url":   url,
				"state": state,
			},
		},
	})
	if err != nil {
		t.Fatalf("building event: %v", err)
	}
	return body
}

func seedDeployment(t *testing.T, st *storetest.MemStore, providerID string, status models.DeploymentStatus) *models.Deployment {
	t.Helper()
	dep := &models.Deployment{
		ID:                   uuid.New().String(),
		TenantID:             "t1",
		TemplateID:           "tpl1",
		Name:                 "Site",
		Subdomain:            "site1",
		Status:               status,
		ProviderDeploymentID: providerID,
		CreatedAt:            time.Now().UTC(),
	}
	if err := st.Deployments().Create(context.Background(), dep); err != nil {
		t.Fatalf("seeding deployment: %v", err)
	}
	return dep
}

func TestVerifySignature(t *testing.T) {
	st := storetest.New()
	rec := New(st.Deployments(), testSecret, nil)
	body := []byte(`{"type":"deployment.ready"}`)

	if err := rec.VerifySignature(body, sign(t, testSecret, body)); err != nil {
		t.Errorf("valid signature rejected: %v", err)
	}

	if err := rec.VerifySignature(body, sign(t, "wrong-secret", body)); !errors.Is(err, ErrBadSignature) {
		t.Errorf("wrong-secret signature accepted: %v", err)
	}

	if err := rec.VerifySignature(body, ""); !errors.Is(err, ErrBadSignature) {
		t.Errorf("missing signature accepted: %v", err)
	}

	// Tampered body with the original signature must be rejected.
	tampered := []byte(`{"type":"deployment.error"}`)
	if err := rec.VerifySignature(tampered, sign(t, testSecret, body)); !errors.Is(err, ErrBadSignature) {
		t.Errorf("tampered body accepted: %v", err)
	}
}

func TestVerifySignatureFailsClosedWithoutSecret(t *testing.T) {
	st := storetest.New()
	rec := New(st.Deployments(), "", nil)
	body := []byte(`{}`)

	if err := rec.VerifySignature(body, sign(t, testSecret, body)); !errors.Is(err, ErrNoSecret) {
		t.Errorf("verification without secret = %v, want ErrNoSecret", err)
	}
}

func TestProcessErrorEventMarksFailed(t *testing.T) {
	st := storetest.New()
	rec := New(st.Deployments(), testSecret, nil)
	dep := seedDeployment(t, st, "dpl_1", models.DeploymentStatusBuilding)
	ctx := context.Background()

	body := eventBody(t, "deployment.error", "dpl_1", "", models.ProviderStateError)
	id, err := rec.Process(ctx, body)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if id != "dpl_1" {
		t.Errorf("ack id = %q", id)
	}

	reloaded, _ := st.Deployments().Get(ctx, dep.ID)
	if reloaded.Status != models.DeploymentStatusFailed {
		t.Errorf("status = %s, want failed", reloaded.Status)
	}
	if reloaded.ErrorMessage != "Deployment failed on hosting provider" {
		t.Errorf("error message = %q", reloaded.ErrorMessage)
	}

	// Retrying the same webhook is a state-wise no-op.
	if _, err := rec.Process(ctx, body); err != nil {
		t.Fatalf("reprocessing: %v", err)
	}
	again, _ := st.Deployments().Get(ctx, dep.ID)
	if again.Status != reloaded.Status || again.ErrorMessage != reloaded.ErrorMessage {
		t.Errorf("retry changed state: %+v vs %+v", again, reloaded)
	}
}

func TestProcessReadyEventSetsRunning(t *testing.T) {
	st := storetest.New()
	rec := New(st.Deployments(), testSecret, nil)
	dep := seedDeployment(t, st, "dpl_2", models.DeploymentStatusBuilding)
	ctx := context.Background()

	body := eventBody(t, "deployment.ready", "dpl_2", "site1.vercel.app", models.ProviderStateReady)
	if _, err := rec.Process(ctx, body); err != nil {
		t.Fatalf("Process: %v", err)
	}

	reloaded, _ := st.Deployments().Get(ctx, dep.ID)
	if reloaded.Status != models.DeploymentStatusRunning {
		t.Errorf("status = %s, want running", reloaded.Status)
	}
	if reloaded.LastDeployedAt == nil {
		t.Error("last_deployed_at not set")
	}
	if reloaded.DeploymentURL != "https://site1.vercel.app" {
		t.Errorf("deployment URL = %q", reloaded.DeploymentURL)
	}
}

func TestProcessCreatedEventMapsProviderState(t *testing.T) {
	st := storetest.New()
	rec := New(st.Deployments(), testSecret, nil)
	dep := seedDeployment(t, st, "dpl_3", models.DeploymentStatusPending)
	ctx := context.Background()

	body := eventBody(t, "deployment.created", "dpl_3", "", models.ProviderStateBuilding)
	if _, err := rec.Process(ctx, body); err != nil {
		t.Fatalf("Process: %v", err)
	}

	reloaded, _ := st.Deployments().Get(ctx, dep.ID)
	if reloaded.Status != models.DeploymentStatusBuilding {
		t.Errorf("status = %s, want building", reloaded.Status)
	}
}

func TestProcessUnknownDeploymentIsBenign(t *testing.T) {
	st := storetest.New()
	rec := New(st.Deployments(), testSecret, nil)

	body := eventBody(t, "deployment.ready", "dpl_missing", "", models.ProviderStateReady)
	id, err := rec.Process(context.Background(), body)
	if err != nil {
		t.Fatalf("unknown deployment should be a no-op, got %v", err)
	}
	if id != "dpl_missing" {
		t.Errorf("ack id = %q", id)
	}
}

func TestProcessIgnoresUnrelatedEventTypes(t *testing.T) {
	st := storetest.New()
	rec := New(st.Deployments(), testSecret, nil)
	dep := seedDeployment(t, st, "dpl_4", models.DeploymentStatusBuilding)
	ctx := context.Background()

	body := eventBody(t, "project.created", "dpl_4", "", models.ProviderStateReady)
	if _, err := rec.Process(ctx, body); err != nil {
		t.Fatalf("Process: %v", err)
	}

	reloaded, _ := st.Deployments().Get(ctx, dep.ID)
	if reloaded.Status != models.DeploymentStatusBuilding {
		t.Errorf("unrelated event changed status to %s", reloaded.Status)
	}
}

func TestProcessRejectsPayloadWithoutDeploymentID(t *testing.T) {
	st := storetest.New()
	rec := New(st.Deployments(), testSecret, nil)

	if _, err := rec.Process(context.Background(), []byte(`{"type":"deployment"}`)); err == nil {
		t.Error("payload without deployment id accepted")
	}
	if _, err := rec.Process(context.Background(), []byte(`not json`)); err == nil {
		t.Error("malformed payload accepted")
	}
}
