package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/duonordic/sitedeck/internal/hosting"
	"github.com/duonordic/sitedeck/internal/models"
	"github.com/duonordic/sitedeck/internal/orchestrator"
	"github.com/duonordic/sitedeck/internal/reconciler"
	"github.com/duonordic/sitedeck/internal/store/storetest"
	"github.com/duonordic/sitedeck/internal/tenant"
	"github.com/duonordic/sitedeck/pkg/config"
)

type stubHosting struct {
	nextID int
}

func (s *stubHosting) CreateDeployment(ctx context.Context, req *hosting.CreateDeploymentRequest) (*hosting.DeploymentResponse, error) {
	s.nextID++
	return &hosting.DeploymentResponse{
		ID:    fmt.Sprintf("dpl_%d", s.nextID),
		URL:   req.Name + ".vercel.app",
		Name:  req.Name,
		State: models.ProviderStateBuilding,
	}, nil
}

func (s *stubHosting) GetDeployment(ctx context.Context, deploymentID string) (*hosting.DeploymentResponse, error) {
	return &hosting.DeploymentResponse{ID: deploymentID, State: models.ProviderStateReady}, nil
}

func (s *stubHosting) DeleteDeployment(ctx context.Context, deploymentID string) error { return nil }
func (s *stubHosting) AssignDomain(ctx context.Context, projectName, domain string) error {
	return nil
}
func (s *stubHosting) RemoveDomain(ctx context.Context, projectName, domain string) error {
	return nil
}
func (s *stubHosting) GetDeploymentLogs(ctx context.Context, deploymentID string) ([]string, error) {
	return []string{"build started"}, nil
}

func newTestServer(t *testing.T) (*Server, *storetest.MemStore) {
	t.Helper()

	st := storetest.New()
	ctx := context.Background()

	tnt := &models.Tenant{
		ID:     uuid.New().String(),
		Name:   "Acme Inc",
		Slug:   "acme",
		Plan:   models.PlanPro,
		Status: models.TenantStatusActive,
	}
	if err := st.Tenants().Create(ctx, tnt); err != nil {
		t.Fatalf("seeding tenant: %v", err)
	}

	tpl := &models.Template{
		ID:          uuid.New().String(),
		Slug:        "landing-basic",
		Name:        "Basic Landing",
		Category:    models.TemplateCategoryLanding,
		RepoURL:     "https://github.com/duonordic/landing-basic",
		RepoBranch:  "main",
		DefaultEnv:  map[string]string{"THEME": "light"},
		IsPublished: true,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := st.Templates().Create(ctx, tpl); err != nil {
		t.Fatalf("seeding template: %v", err)
	}
	if err := st.Templates().Publish(ctx, tpl.ID); err != nil {
		t.Fatalf("publishing template: %v", err)
	}

	cfg := config.LoadWithDefaults()
	cfg.Webhook.Secret = "test-secret"

	orch := orchestrator.New(st, &stubHosting{}, &orchestrator.Config{BaseDomain: "sitedeck.app"}, nil)
	resolver := tenant.NewResolver(st.Tenants(), tenant.NewMemoryCache(time.Minute), &tenant.Config{BaseDomain: "sitedeck.app"}, nil)
	rec := reconciler.New(st.Deployments(), cfg.Webhook.Secret, nil)

	return NewServer(cfg, st, st, orch, resolver, rec, nil), st
}

func asTenant(req *http.Request) *http.Request {
	req.Header.Set("x-tenant-slug", "acme")
	return req
}

func TestHealthEndpointNeedsNoTenant(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if _, ok := body["components"]; !ok {
		t.Errorf("health body missing components: %v", body)
	}
}

func TestV1RejectsUnresolvedTenant(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest("GET", "/v1/templates", nil))

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestTenantsCurrentEchoesResolvedTenant(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, asTenant(httptest.NewRequest("GET", "/v1/tenants/current", nil)))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var got models.Tenant
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if got.Slug != "acme" {
		t.Errorf("slug = %q", got.Slug)
	}
}

func TestTemplateListAndGet(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, asTenant(httptest.NewRequest("GET", "/v1/templates", nil)))
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, asTenant(httptest.NewRequest("GET", "/v1/templates/landing-basic", nil)))
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d, body = %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, asTenant(httptest.NewRequest("GET", "/v1/templates/no-such-template", nil)))
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing template status = %d, want 404", rr.Code)
	}
}

func TestDeploymentLifecycleOverHTTP(t *testing.T) {
	srv, st := newTestServer(t)

	ctx := context.Background()
	tpl, err := st.Templates().Get(ctx, "landing-basic")
	if err != nil {
		t.Fatalf("template lookup: %v", err)
	}

	createBody, _ := json.Marshal(map[string]any{
		"template_id": tpl.ID,
		"subdomain":   "myshop",
	})
	rr := httptest.NewRecorder()
	req := asTenant(httptest.NewRequest("POST", "/v1/deployments", bytes.NewReader(createBody)))
	req.Header.Set("Content-Type", "application/json")
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var created models.Deployment
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("decoding create body: %v", err)
	}
	if created.Subdomain != "myshop" {
		t.Errorf("subdomain = %q", created.Subdomain)
	}

	rr = httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, asTenant(httptest.NewRequest("GET", "/v1/deployments/"+created.ID, nil)))
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, asTenant(httptest.NewRequest("DELETE", "/v1/deployments/"+created.ID, nil)))
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body = %s", rr.Code, rr.Body.String())
	}

	// Deleted rows disappear from tenant reads.
	rr = httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, asTenant(httptest.NewRequest("GET", "/v1/deployments/"+created.ID, nil)))
	if rr.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rr.Code)
	}
}

func TestCreateDeploymentValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]any{"subdomain": "myshop"})
	rr := httptest.NewRecorder()
	req := asTenant(httptest.NewRequest("POST", "/v1/deployments", bytes.NewReader(body)))
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing template_id status = %d, want 400", rr.Code)
	}
}
