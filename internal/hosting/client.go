// Package hosting provides a typed client for the external hosting
// provider's deployment API.
package hosting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/duonordic/sitedeck/internal/models"
)

// GitSource identifies the repository a deployment builds from.
type GitSource struct {
	Type string `json:"type"` // github, gitlab, bitbucket
	Repo string `json:"repo"` // owner/name
	Ref  string `json:"ref,omitempty"`
}

// ProjectSettings carries optional build configuration for the provider.
type ProjectSettings struct {
	Framework       string `json:"framework,omitempty"`
	BuildCommand    string `json:"buildCommand,omitempty"`
	OutputDirectory string `json:"outputDirectory,omitempty"`
	InstallCommand  string `json:"installCommand,omitempty"`
}

// CreateDeploymentRequest is the intent passed to CreateDeployment.
type CreateDeploymentRequest struct {
	Name            string
	GitSource       GitSource
	Env             map[string]string
	ProjectSettings *ProjectSettings
}

// DeploymentResponse is the provider's view of a deployment.
type DeploymentResponse struct {
	ID        string               `json:"id"`
	URL       string               `json:"url"`
	Name      string               `json:"name"`
	State     models.ProviderState `json:"state"`
	CreatedAt int64                `json:"createdAt"`
}

// envVar is the provider's key/value/visibility triple for environment
// variables.
type envVar struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Type  string `json:"type"`
}

// Error is a descriptive hosting API failure carrying the provider's
// message when one was decodable, else the HTTP status text.
type Error struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Operation, e.Message)
}

// Config holds hosting client configuration.
type Config struct {
	// APIToken authenticates every call.
	APIToken string
	// TeamID optionally scopes calls to a team/organization.
	TeamID string
	// BaseURL is the provider endpoint; defaults to the public API.
	BaseURL string
	// RequestTimeout bounds each call; defaults to 30s.
	RequestTimeout time.Duration
}

// Client issues authenticated calls against the hosting provider. It
// holds no state beyond the configured token and optional team scope.
type Client struct {
	baseURL    string
	apiToken   string
	teamID     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a hosting client from the given configuration.
func NewClient(cfg *Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("hosting API token is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.vercel.com"
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:  baseURL,
		apiToken: cfg.APIToken,
		teamID:   cfg.TeamID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}, nil
}

// CreateDeployment creates a new deployment on the provider.
func (c *Client) CreateDeployment(ctx context.Context, req *CreateDeploymentRequest) (*DeploymentResponse, error) {
	ref := req.GitSource.Ref
	if ref == "" {
		ref = "main"
	}

	payload := map[string]any{
		"name": req.Name,
		"gitSource": GitSource{
			Type: req.GitSource.Type,
			Repo: req.GitSource.Repo,
			Ref:  ref,
		},
		"env":    transformEnvVars(req.Env),
		"target": "production",
	}
	if req.ProjectSettings != nil {
		payload["projectSettings"] = req.ProjectSettings
	}

	var resp DeploymentResponse
	if err := c.do(ctx, http.MethodPost, "/v13/deployments", payload, &resp, nil); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetDeployment retrieves a deployment's current status.
func (c *Client) GetDeployment(ctx context.Context, deploymentID string) (*DeploymentResponse, error) {
	var resp DeploymentResponse
	path := "/v13/deployments/" + url.PathEscape(deploymentID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp, nil); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteDeployment deletes a deployment. A 404 means the deployment is
// already gone remotely and is treated as success so the local
// soft-delete can proceed.
func (c *Client) DeleteDeployment(ctx context.Context, deploymentID string) error {
	path := "/v13/deployments/" + url.PathEscape(deploymentID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, []int{http.StatusNotFound})
}

// AssignDomain attaches a custom domain to a project.
func (c *Client) AssignDomain(ctx context.Context, projectName, domain string) error {
	path := "/v9/projects/" + url.PathEscape(projectName) + "/domains"
	payload := map[string]string{"name": domain}
	return c.do(ctx, http.MethodPost, path, payload, nil, nil)
}

// RemoveDomain detaches a custom domain from a project. A 404 is
// treated as success.
func (c *Client) RemoveDomain(ctx context.Context, projectName, domain string) error {
	path := "/v9/projects/" + url.PathEscape(projectName) + "/domains/" + url.PathEscape(domain)
	return c.do(ctx, http.MethodDelete, path, nil, nil, []int{http.StatusNotFound})
}

// GetDeploymentLogs retrieves build log lines for a deployment.
func (c *Client) GetDeploymentLogs(ctx context.Context, deploymentID string) ([]string, error) {
	path := "/v2/deployments/" + url.PathEscape(deploymentID) + "/events"

	var events []struct {
		Text    string `json:"text"`
		Payload struct {
			Text string `json:"text"`
		} `json:"payload"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &events, nil); err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(events))
	for _, ev := range events {
		if ev.Text != "" {
			lines = append(lines, ev.Text)
		} else {
			lines = append(lines, ev.Payload.Text)
		}
	}
	return lines, nil
}

// do issues one authenticated HTTP call and decodes the response.
// tolerated lists status codes outside 2xx that count as success.
func (c *Client) do(ctx context.Context, method, path string, payload, out any, tolerated []int) error {
	u := c.baseURL + path
	if c.teamID != "" {
		u += "?teamId=" + url.QueryEscape(c.teamID)
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{
			Operation: method + " " + path,
			Message:   err.Error(),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		for _, code := range tolerated {
			if resp.StatusCode == code {
				return nil
			}
		}
		return &Error{
			Operation:  method + " " + path,
			StatusCode: resp.StatusCode,
			Message:    c.errorMessage(resp),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// errorMessage extracts the provider's error message from a non-2xx
// response body, falling back to the HTTP status text.
func (c *Client) errorMessage(resp *http.Response) string {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error.Message != "" {
		return body.Error.Message
	}
	return http.StatusText(resp.StatusCode)
}

// transformEnvVars converts environment variables into the provider's
// key/value/visibility triples. Keys are sorted for a stable payload.
func transformEnvVars(env map[string]string) []envVar {
	if len(env) == 0 {
		return []envVar{}
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	vars := make([]envVar, 0, len(keys))
	for _, k := range keys {
		vars = append(vars, envVar{Key: k, Value: env[k], Type: "plain"})
	}
	return vars
}
