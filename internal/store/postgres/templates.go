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

// TemplateStore implements store.TemplateStore using PostgreSQL.
type TemplateStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

func (s *TemplateStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

const templateColumns = `id, slug, name, description, category, repo_url, repo_branch,
	thumbnail_url, demo_url, config_schema, default_env, tags, is_published, deploy_count,
	created_at, updated_at`

// Create creates a new template (unpublished).
func (s *TemplateStore) Create(ctx context.Context, template *models.Template) error {
	schemaJSON, err := json.Marshal(template.ConfigSchema)
	if err != nil {
		return fmt.Errorf("marshaling config_schema: %w", err)
	}
	envJSON, err := json.Marshal(template.DefaultEnv)
	if err != nil {
		return fmt.Errorf("marshaling default_env: %w", err)
	}
	tagsJSON, err := json.Marshal(template.Tags)
	if err != nil {
		return fmt.Errorf("marshaling tags: %w", err)
	}

	now := time.Now().UTC()
	if template.CreatedAt.IsZero() {
		template.CreatedAt = now
	}
	if template.UpdatedAt.IsZero() {
		template.UpdatedAt = now
	}
	if template.RepoBranch == "" {
		template.RepoBranch = "main"
	}

	query := `
		INSERT INTO templates (id, slug, name, description, category, repo_url, repo_branch,
			thumbnail_url, demo_url, config_schema, default_env, tags, is_published, deploy_count,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err = s.conn().ExecContext(ctx, query,
		template.ID,
		template.Slug,
		template.Name,
		template.Description,
		template.Category,
		template.RepoURL,
		template.RepoBranch,
		template.ThumbnailURL,
		template.DemoURL,
		schemaJSON,
		envJSON,
		tagsJSON,
		template.IsPublished,
		template.DeployCount,
		template.CreatedAt,
		template.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("inserting template: %w", err)
	}

	return nil
}

// Get retrieves a published template by ID or slug.
func (s *TemplateStore) Get(ctx context.Context, idOrSlug string) (*models.Template, error) {
	query := `SELECT ` + templateColumns + `
		FROM templates
		WHERE (id = $1 OR slug = $1) AND is_published = TRUE
		LIMIT 1`

	template, err := scanTemplate(s.conn().QueryRowContext(ctx, query, idOrSlug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return template, nil
}

// List retrieves published templates ordered by popularity.
func (s *TemplateStore) List(ctx context.Context, limit, offset int) ([]*models.Template, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + templateColumns + `
		FROM templates
		WHERE is_published = TRUE
		ORDER BY deploy_count DESC, created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := s.conn().QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying templates: %w", err)
	}
	defer rows.Close()

	var templates []*models.Template
	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, template)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating template rows: %w", err)
	}

	return templates, nil
}

// Update updates an existing template.
func (s *TemplateStore) Update(ctx context.Context, template *models.Template) error {
	schemaJSON, err := json.Marshal(template.ConfigSchema)
	if err != nil {
		return fmt.Errorf("marshaling config_schema: %w", err)
	}
	envJSON, err := json.Marshal(template.DefaultEnv)
	if err != nil {
		return fmt.Errorf("marshaling default_env: %w", err)
	}
	tagsJSON, err := json.Marshal(template.Tags)
	if err != nil {
		return fmt.Errorf("marshaling tags: %w", err)
	}

	template.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE templates
		SET slug = $2, name = $3, description = $4, category = $5, repo_url = $6,
			repo_branch = $7, thumbnail_url = $8, demo_url = $9, config_schema = $10,
			default_env = $11, tags = $12, is_published = $13, updated_at = $14
		WHERE id = $1`

	result, err := s.conn().ExecContext(ctx, query,
		template.ID,
		template.Slug,
		template.Name,
		template.Description,
		template.Category,
		template.RepoURL,
		template.RepoBranch,
		template.ThumbnailURL,
		template.DemoURL,
		schemaJSON,
		envJSON,
		tagsJSON,
		template.IsPublished,
		template.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("updating template: %w", err)
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

// Publish marks a template as published.
func (s *TemplateStore) Publish(ctx context.Context, id string) error {
	query := `UPDATE templates SET is_published = TRUE, updated_at = $2 WHERE id = $1`

	result, err := s.conn().ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("publishing template: %w", err)
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

// IncrementDeployCount bumps the template's deploy counter.
func (s *TemplateStore) IncrementDeployCount(ctx context.Context, id string) error {
	query := `UPDATE templates SET deploy_count = deploy_count + 1, updated_at = $2 WHERE id = $1`

	result, err := s.conn().ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("incrementing deploy count: %w", err)
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

func scanTemplate(row scanner) (*models.Template, error) {
	template := &models.Template{}
	var description, thumbnailURL, demoURL sql.NullString
	var schemaJSON, envJSON, tagsJSON []byte

	err := row.Scan(
		&template.ID,
		&template.Slug,
		&template.Name,
		&description,
		&template.Category,
		&template.RepoURL,
		&template.RepoBranch,
		&thumbnailURL,
		&demoURL,
		&schemaJSON,
		&envJSON,
		&tagsJSON,
		&template.IsPublished,
		&template.DeployCount,
		&template.CreatedAt,
		&template.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning template row: %w", err)
	}

	if description.Valid {
		template.Description = description.String
	}
	if thumbnailURL.Valid {
		template.ThumbnailURL = thumbnailURL.String
	}
	if demoURL.Valid {
		template.DemoURL = demoURL.String
	}

	if len(schemaJSON) > 0 {
		if err := json.Unmarshal(schemaJSON, &template.ConfigSchema); err != nil {
			return nil, fmt.Errorf("unmarshaling config_schema: %w", err)
		}
	}
	if len(envJSON) > 0 {
		if err := json.Unmarshal(envJSON, &template.DefaultEnv); err != nil {
			return nil, fmt.Errorf("unmarshaling default_env: %w", err)
		}
	}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &template.Tags); err != nil {
			return nil, fmt.Errorf("unmarshaling tags: %w", err)
		}
	}

	return template, nil
}
