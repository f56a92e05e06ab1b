package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	apierrors "github.com/duonordic/sitedeck/internal/api/errors"
	"github.com/duonordic/sitedeck/internal/models"
	"github.com/duonordic/sitedeck/internal/tenant"
)

type contextKey string

// TenantContextKey is the context key for the resolved tenant.
const TenantContextKey contextKey = "tenant"

const tenantLogKey contextKey = "tenantLog"

// tenantLogEntry lets the request logger, which wraps this middleware,
// see the tenant resolved further down the chain.
type tenantLogEntry struct {
	id string
}

// TenantContext returns a middleware that resolves the tenant for each
// request and stores it on the context. Resolution is delegated to the
// resolver's ordered strategies; "no tenant" is a hard outcome for
// routes behind this middleware.
//
// A positive resolution is also written forward as x-tenant-* request
// headers so downstream consumers can read the tenant without
// re-resolving.
func TenantContext(resolver *tenant.Resolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t, err := resolver.Resolve(r.Context(), r)
			if err != nil {
				logger.Error("tenant resolution failed",
					"host", r.Host,
					"path", r.URL.Path,
					"error", err,
				)
				apierrors.WriteError(w, apierrors.NewInternalError("Failed to resolve tenant"))
				return
			}
			if t == nil {
				logger.Debug("no tenant for request",
					"host", r.Host,
					"path", r.URL.Path,
				)
				apierrors.WriteError(w, apierrors.NewNotFoundError("Tenant not found"))
				return
			}

			r.Header.Set("x-tenant-id", t.ID)
			r.Header.Set("x-tenant-slug", t.Slug)
			r.Header.Set("x-tenant-name", t.Name)
			if len(t.Config) > 0 {
				if cfg, err := json.Marshal(t.Config); err == nil {
					r.Header.Set("x-tenant-config", string(cfg))
				}
			}

			if entry, ok := r.Context().Value(tenantLogKey).(*tenantLogEntry); ok {
				entry.id = t.ID
			}

			ctx := context.WithValue(r.Context(), TenantContextKey, t)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetTenant extracts the resolved tenant from the request context.
func GetTenant(ctx context.Context) *models.Tenant {
	if v := ctx.Value(TenantContextKey); v != nil {
		return v.(*models.Tenant)
	}
	return nil
}

// GetTenantID extracts the resolved tenant's ID from the request context.
// Returns empty string if no tenant is set.
func GetTenantID(ctx context.Context) string {
	if t := GetTenant(ctx); t != nil {
		return t.ID
	}
	return ""
}
