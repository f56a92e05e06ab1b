package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/duonordic/sitedeck/internal/models"
)

// AuditLogStore implements store.AuditLogStore using PostgreSQL.
// Audit logs are append-only; there are no read or mutate operations.
type AuditLogStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

func (s *AuditLogStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Create appends an audit log entry.
func (s *AuditLogStore) Create(ctx context.Context, entry *models.AuditLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO audit_logs (id, tenant_id, action, resource_type, resource_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.conn().ExecContext(ctx, query,
		entry.ID,
		entry.TenantID,
		entry.Action,
		entry.ResourceType,
		entry.ResourceID,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting audit log: %w", err)
	}

	return nil
}
