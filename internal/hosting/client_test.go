package hosting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/duonordic/sitedeck/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, teamID string) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(&Config{
		APIToken: "tok_test",
		TeamID:   teamID,
		BaseURL:  srv.URL,
	}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, srv
}

func TestCreateDeployment(t *testing.T) {
	var gotAuth, gotPath, gotQuery string
	var gotBody map[string]any

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(DeploymentResponse{
			ID:    "dpl_abc",
			URL:   "acme-site1.vercel.app",
			State: models.ProviderStateQueued,
		})
	}, "team_1")

	resp, err := client.CreateDeployment(context.Background(), &CreateDeploymentRequest{
		Name: "acme-site1",
		GitSource: GitSource{
			Type: "github",
			Repo: "duonordic/landing-basic",
		},
		Env: map[string]string{"B_KEY": "2", "A_KEY": "1"},
	})
	if err != nil {
		t.Fatalf("CreateDeployment: %v", err)
	}

	if resp.ID != "dpl_abc" || resp.State != models.ProviderStateQueued {
		t.Errorf("response = %+v", resp)
	}
	if gotAuth != "Bearer tok_test" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotPath != "/v13/deployments" {
		t.Errorf("path = %q", gotPath)
	}
	if gotQuery != "teamId=team_1" {
		t.Errorf("query = %q", gotQuery)
	}

	// Default target and ref applied.
	if gotBody["target"] != "production" {
		t.Errorf("target = %v", gotBody["target"])
	}
	git := gotBody["gitSource"].(map[string]any)
	if git["ref"] != "main" {
		t.Errorf("default ref = %v", git["ref"])
	}

	// Env vars become sorted key/value/type triples.
	env := gotBody["env"].([]any)
	if len(env) != 2 {
		t.Fatalf("env triples = %v", env)
	}
	first := env[0].(map[string]any)
	if first["key"] != "A_KEY" || first["value"] != "1" || first["type"] != "plain" {
		t.Errorf("first env triple = %v", first)
	}
}

func TestDeleteDeploymentTolerates404(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"not found"}}`, http.StatusNotFound)
	}, "")

	if err := client.DeleteDeployment(context.Background(), "dpl_gone"); err != nil {
		t.Errorf("404 on delete should be success, got %v", err)
	}
}

func TestRemoveDomainTolerates404(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, "")

	if err := client.RemoveDomain(context.Background(), "acme-site1", "www.acme.com"); err != nil {
		t.Errorf("404 on domain removal should be success, got %v", err)
	}
}

func TestErrorCarriesProviderMessage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "invalid gitSource"},
		})
	}, "")

	_, err := client.CreateDeployment(context.Background(), &CreateDeploymentRequest{Name: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("error type = %T", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Message != "invalid gitSource" {
		t.Errorf("error = %+v", apiErr)
	}
}

func TestErrorFallsBackToStatusText(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, "")

	_, err := client.GetDeployment(context.Background(), "dpl_1")
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("error type = %T", err)
	}
	if apiErr.Message != http.StatusText(http.StatusBadGateway) {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestGetDeploymentLogs(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"text": "Cloning repository..."},
			{"payload": map[string]any{"text": "Build completed"}},
		})
	}, "")

	lines, err := client.GetDeploymentLogs(context.Background(), "dpl_1")
	if err != nil {
		t.Fatalf("GetDeploymentLogs: %v", err)
	}
	if len(lines) != 2 || lines[0] != "Cloning repository..." || lines[1] != "Build completed" {
		t.Errorf("lines = %v", lines)
	}
}

func TestNewClientRequiresToken(t *testing.T) {
	if _, err := NewClient(&Config{}, nil); err == nil {
		t.Error("client created without API token")
	}
}
