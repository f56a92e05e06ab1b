package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/duonordic/sitedeck/internal/models"
)

// TenantStore implements store.TenantStore using PostgreSQL.
type TenantStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

// conn returns the queryable connection (transaction or database).
func (s *TenantStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

const tenantColumns = `id, name, slug, domain, plan, status, config, trial_ends_at, created_at, updated_at, deleted_at`

// Create creates a new tenant.
func (s *TenantStore) Create(ctx context.Context, tenant *models.Tenant) error {
	configJSON, err := json.Marshal(tenant.Config)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	now := time.Now().UTC()
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = now
	}
	if tenant.UpdatedAt.IsZero() {
		tenant.UpdatedAt = now
	}

	var domain *string
	if tenant.Domain != "" {
		domain = &tenant.Domain
	}

	query := `
		INSERT INTO tenants (id, name, slug, domain, plan, status, config, trial_ends_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = s.conn().ExecContext(ctx, query,
		tenant.ID,
		tenant.Name,
		tenant.Slug,
		domain,
		tenant.Plan,
		tenant.Status,
		configJSON,
		tenant.TrialEndsAt,
		tenant.CreatedAt,
		tenant.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("inserting tenant: %w", err)
	}

	return nil
}

// Get retrieves an active, non-deleted tenant by ID.
func (s *TenantStore) Get(ctx context.Context, id string) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + `
		FROM tenants
		WHERE id = $1 AND status = 'active' AND deleted_at IS NULL`
	return s.scanOne(s.conn().QueryRowContext(ctx, query, id))
}

// GetBySlug retrieves an active, non-deleted tenant by slug.
func (s *TenantStore) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + `
		FROM tenants
		WHERE slug = $1 AND status = 'active' AND deleted_at IS NULL`
	return s.scanOne(s.conn().QueryRowContext(ctx, query, slug))
}

// GetByDomain retrieves an active, non-deleted tenant by custom domain.
func (s *TenantStore) GetByDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + `
		FROM tenants
		WHERE domain = $1 AND status = 'active' AND deleted_at IS NULL`
	return s.scanOne(s.conn().QueryRowContext(ctx, query, domain))
}

// List retrieves non-deleted tenants, newest first.
func (s *TenantStore) List(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + tenantColumns + `
		FROM tenants
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := s.conn().QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, tenant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tenant rows: %w", err)
	}

	return tenants, nil
}

// Update updates an existing tenant.
func (s *TenantStore) Update(ctx context.Context, tenant *models.Tenant) error {
	configJSON, err := json.Marshal(tenant.Config)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	tenant.UpdatedAt = time.Now().UTC()

	var domain *string
	if tenant.Domain != "" {
		domain = &tenant.Domain
	}

	query := `
		UPDATE tenants
		SET name = $2, slug = $3, domain = $4, plan = $5, status = $6,
			config = $7, trial_ends_at = $8, updated_at = $9
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := s.conn().ExecContext(ctx, query,
		tenant.ID,
		tenant.Name,
		tenant.Slug,
		domain,
		tenant.Plan,
		tenant.Status,
		configJSON,
		tenant.TrialEndsAt,
		tenant.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("updating tenant: %w", err)
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

// Delete soft-deletes a tenant by setting status cancelled and deleted_at.
func (s *TenantStore) Delete(ctx context.Context, id string) error {
	query := `
		UPDATE tenants
		SET status = 'cancelled', deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := s.conn().ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deleting tenant: %w", err)
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

// scanner matches both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func (s *TenantStore) scanOne(row *sql.Row) (*models.Tenant, error) {
	tenant, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return tenant, nil
}

func scanTenant(row scanner) (*models.Tenant, error) {
	tenant := &models.Tenant{}
	var domain sql.NullString
	var configJSON []byte
	var trialEndsAt, deletedAt sql.NullTime

	err := row.Scan(
		&tenant.ID,
		&tenant.Name,
		&tenant.Slug,
		&domain,
		&tenant.Plan,
		&tenant.Status,
		&configJSON,
		&trialEndsAt,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning tenant row: %w", err)
	}

	if domain.Valid {
		tenant.Domain = domain.String
	}
	if trialEndsAt.Valid {
		tenant.TrialEndsAt = &trialEndsAt.Time
	}
	if deletedAt.Valid {
		tenant.DeletedAt = &deletedAt.Time
	}

	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &tenant.Config); err != nil {
			return nil, fmt.Errorf("unmarshaling config: %w", err)
		}
	}

	return tenant, nil
}
