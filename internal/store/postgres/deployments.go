package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/duonordic/sitedeck/internal/models"
	"github.com/duonordic/sitedeck/internal/store"
)

// DeploymentStore implements store.DeploymentStore using PostgreSQL.
type DeploymentStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

func (s *DeploymentStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

const deploymentColumns = `id, tenant_id, template_id, name, subdomain, custom_domain,
	status, env_vars, build_config, provider_deployment_id, deployment_url, error_message,
	build_logs, ssl_enabled, created_at, updated_at, last_deployed_at, deleted_at`

// Create creates a new deployment. A unique-constraint violation on
// subdomain or custom domain surfaces as ErrDuplicateKey.
func (s *DeploymentStore) Create(ctx context.Context, deployment *models.Deployment) error {
	envJSON, err := json.Marshal(deployment.EnvVars)
	if err != nil {
		return fmt.Errorf("marshaling env_vars: %w", err)
	}
	buildJSON, err := json.Marshal(deployment.BuildConfig)
	if err != nil {
		return fmt.Errorf("marshaling build_config: %w", err)
	}

	now := time.Now().UTC()
	if deployment.CreatedAt.IsZero() {
		deployment.CreatedAt = now
	}
	if deployment.UpdatedAt.IsZero() {
		deployment.UpdatedAt = now
	}

	var customDomain *string
	if deployment.CustomDomain != "" {
		customDomain = &deployment.CustomDomain
	}

	query := `
		INSERT INTO deployments (id, tenant_id, template_id, name, subdomain, custom_domain,
			status, env_vars, build_config, provider_deployment_id, deployment_url, error_message,
			build_logs, ssl_enabled, created_at, updated_at, last_deployed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err = s.conn().ExecContext(ctx, query,
		deployment.ID,
		deployment.TenantID,
		deployment.TemplateID,
		deployment.Name,
		deployment.Subdomain,
		customDomain,
		deployment.Status,
		envJSON,
		buildJSON,
		deployment.ProviderDeploymentID,
		deployment.DeploymentURL,
		deployment.ErrorMessage,
		deployment.BuildLogs,
		deployment.SSLEnabled,
		deployment.CreatedAt,
		deployment.UpdatedAt,
		deployment.LastDeployedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("inserting deployment: %w", err)
	}

	return nil
}

// Get retrieves a deployment by ID.
func (s *DeploymentStore) Get(ctx context.Context, id string) (*models.Deployment, error) {
	query := `SELECT ` + deploymentColumns + `
		FROM deployments
		WHERE id = $1`
	return s.getOne(ctx, query, id)
}

// GetByProviderID retrieves a deployment by its provider deployment ID.
func (s *DeploymentStore) GetByProviderID(ctx context.Context, providerID string) (*models.Deployment, error) {
	query := `SELECT ` + deploymentColumns + `
		FROM deployments
		WHERE provider_deployment_id = $1`
	return s.getOne(ctx, query, providerID)
}

// GetBySubdomain retrieves the running, non-deleted deployment for a subdomain.
func (s *DeploymentStore) GetBySubdomain(ctx context.Context, subdomain string) (*models.Deployment, error) {
	query := `SELECT ` + deploymentColumns + `
		FROM deployments
		WHERE subdomain = $1 AND status = 'running' AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1`
	return s.getOne(ctx, query, subdomain)
}

func (s *DeploymentStore) getOne(ctx context.Context, query string, arg any) (*models.Deployment, error) {
	deployment, err := scanDeployment(s.conn().QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return deployment, nil
}

// List retrieves all non-deleted deployments for a tenant, newest first.
func (s *DeploymentStore) List(ctx context.Context, tenantID string) ([]*models.Deployment, error) {
	query := `SELECT ` + deploymentColumns + `
		FROM deployments
		WHERE tenant_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC`

	rows, err := s.conn().QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("querying deployments: %w", err)
	}
	defer rows.Close()

	return scanDeployments(rows)
}

// ListByStatus retrieves all non-deleted deployments with a given status.
func (s *DeploymentStore) ListByStatus(ctx context.Context, statuses ...models.DeploymentStatus) ([]*models.Deployment, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = status
	}

	query := `SELECT ` + deploymentColumns + `
		FROM deployments
		WHERE status IN (` + strings.Join(placeholders, ", ") + `) AND deleted_at IS NULL
		ORDER BY created_at ASC`

	rows, err := s.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying deployments by status: %w", err)
	}
	defer rows.Close()

	return scanDeployments(rows)
}

// ListStale retrieves non-deleted deployments in the given statuses
// created before the cutoff.
func (s *DeploymentStore) ListStale(ctx context.Context, cutoff time.Time, statuses ...models.DeploymentStatus) ([]*models.Deployment, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(statuses))
	args := []any{cutoff}
	for i, status := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, status)
	}

	query := `SELECT ` + deploymentColumns + `
		FROM deployments
		WHERE created_at < $1 AND status IN (` + strings.Join(placeholders, ", ") + `) AND deleted_at IS NULL
		ORDER BY created_at ASC`

	rows, err := s.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying stale deployments: %w", err)
	}
	defer rows.Close()

	return scanDeployments(rows)
}

// Update updates an existing deployment.
func (s *DeploymentStore) Update(ctx context.Context, deployment *models.Deployment) error {
	envJSON, err := json.Marshal(deployment.EnvVars)
	if err != nil {
		return fmt.Errorf("marshaling env_vars: %w", err)
	}
	buildJSON, err := json.Marshal(deployment.BuildConfig)
	if err != nil {
		return fmt.Errorf("marshaling build_config: %w", err)
	}

	deployment.UpdatedAt = time.Now().UTC()

	var customDomain *string
	if deployment.CustomDomain != "" {
		customDomain = &deployment.CustomDomain
	}

	query := `
		UPDATE deployments
		SET name = $2, custom_domain = $3, status = $4, env_vars = $5, build_config = $6,
			provider_deployment_id = $7, deployment_url = $8, error_message = $9,
			build_logs = $10, ssl_enabled = $11, updated_at = $12, last_deployed_at = $13,
			deleted_at = $14
		WHERE id = $1`

	result, err := s.conn().ExecContext(ctx, query,
		deployment.ID,
		deployment.Name,
		customDomain,
		deployment.Status,
		envJSON,
		buildJSON,
		deployment.ProviderDeploymentID,
		deployment.DeploymentURL,
		deployment.ErrorMessage,
		deployment.BuildLogs,
		deployment.SSLEnabled,
		deployment.UpdatedAt,
		deployment.LastDeployedAt,
		deployment.DeletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("updating deployment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdateByProviderID applies a webhook-driven status update located by
// provider deployment ID.
func (s *DeploymentStore) UpdateByProviderID(ctx context.Context, providerID string, update *store.DeploymentStatusUpdate) error {
	query := `
		UPDATE deployments
		SET status = $2,
			deployment_url = COALESCE($3, deployment_url),
			error_message = COALESCE($4, error_message),
			build_logs = COALESCE($5, build_logs),
			last_deployed_at = COALESCE($6, last_deployed_at),
			updated_at = $7
		WHERE provider_deployment_id = $1`

	result, err := s.conn().ExecContext(ctx, query,
		providerID,
		update.Status,
		update.DeploymentURL,
		update.ErrorMessage,
		update.BuildLogs,
		update.LastDeployedAt,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("updating deployment by provider id: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// CountTakenSubdomain reports whether a subdomain is taken among
// non-deleted deployments.
func (s *DeploymentStore) CountTakenSubdomain(ctx context.Context, subdomain string) (bool, error) {
	query := `SELECT EXISTS(
		SELECT 1 FROM deployments WHERE subdomain = $1 AND deleted_at IS NULL)`

	var taken bool
	if err := s.conn().QueryRowContext(ctx, query, subdomain).Scan(&taken); err != nil {
		return false, fmt.Errorf("checking subdomain: %w", err)
	}
	return taken, nil
}

// CountTakenDomain reports whether a custom domain is taken among
// non-deleted deployments.
func (s *DeploymentStore) CountTakenDomain(ctx context.Context, domain string) (bool, error) {
	query := `SELECT EXISTS(
		SELECT 1 FROM deployments WHERE custom_domain = $1 AND deleted_at IS NULL)`

	var taken bool
	if err := s.conn().QueryRowContext(ctx, query, domain).Scan(&taken); err != nil {
		return false, fmt.Errorf("checking custom domain: %w", err)
	}
	return taken, nil
}

func scanDeployment(row scanner) (*models.Deployment, error) {
	deployment := &models.Deployment{}
	var customDomain, deploymentURL, errorMessage, buildLogs sql.NullString
	var envJSON, buildJSON []byte
	var lastDeployedAt, deletedAt sql.NullTime

	err := row.Scan(
		&deployment.ID,
		&deployment.TenantID,
		&deployment.TemplateID,
		&deployment.Name,
		&deployment.Subdomain,
		&customDomain,
		&deployment.Status,
		&envJSON,
		&buildJSON,
		&deployment.ProviderDeploymentID,
		&deploymentURL,
		&errorMessage,
		&buildLogs,
		&deployment.SSLEnabled,
		&deployment.CreatedAt,
		&deployment.UpdatedAt,
		&lastDeployedAt,
		&deletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning deployment row: %w", err)
	}

	if customDomain.Valid {
		deployment.CustomDomain = customDomain.String
	}
	if deploymentURL.Valid {
		deployment.DeploymentURL = deploymentURL.String
	}
	if errorMessage.Valid {
		deployment.ErrorMessage = errorMessage.String
	}
	if buildLogs.Valid {
		deployment.BuildLogs = buildLogs.String
	}
	if lastDeployedAt.Valid {
		deployment.LastDeployedAt = &lastDeployedAt.Time
	}
	if deletedAt.Valid {
		deployment.DeletedAt = &deletedAt.Time
	}

	if len(envJSON) > 0 {
		if err := json.Unmarshal(envJSON, &deployment.EnvVars); err != nil {
			return nil, fmt.Errorf("unmarshaling env_vars: %w", err)
		}
	}
	if len(buildJSON) > 0 && string(buildJSON) != "null" {
		if err := json.Unmarshal(buildJSON, &deployment.BuildConfig); err != nil {
			return nil, fmt.Errorf("unmarshaling build_config: %w", err)
		}
	}

	return deployment, nil
}

func scanDeployments(rows *sql.Rows) ([]*models.Deployment, error) {
	var deployments []*models.Deployment

	for rows.Next() {
		deployment, err := scanDeployment(rows)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, deployment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating deployment rows: %w", err)
	}

	return deployments, nil
}
