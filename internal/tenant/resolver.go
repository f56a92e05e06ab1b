// Package tenant resolves the tenant behind an incoming request using
// an ordered set of strategies over the request host, query string, and
// forwarded headers.
package tenant

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/duonordic/sitedeck/internal/models"
	"github.com/duonordic/sitedeck/internal/store"
	"github.com/duonordic/sitedeck/internal/store/postgres"
)

// Config holds resolver configuration.
type Config struct {
	// BaseDomain is the platform's apex; hosts ending in it resolve by
	// subdomain label rather than custom domain.
	BaseDomain string
	// DevFallbackSlug, when set, names a tenant to fall back to when no
	// strategy matches. Intended for local development only.
	DevFallbackSlug string
}

// Resolver maps requests to tenants. The cache is injected so callers
// control its lifetime and sharing.
type Resolver struct {
	tenants         store.TenantStore
	cache           Cache
	baseDomain      string
	devFallbackSlug string
	logger          *slog.Logger
}

// NewResolver creates a resolver backed by the given store and cache.
func NewResolver(tenants store.TenantStore, cache Cache, cfg *Config, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	baseDomain := cfg.BaseDomain
	if baseDomain == "" {
		baseDomain = "sitedeck.app"
	}
	return &Resolver{
		tenants:         tenants,
		cache:           cache,
		baseDomain:      baseDomain,
		devFallbackSlug: cfg.DevFallbackSlug,
		logger:          logger,
	}
}

// Resolve determines the tenant for a request. Strategies are tried in
// order: custom domain, platform subdomain, tenant query parameter,
// forwarded tenant-id header, forwarded tenant-slug header. A nil
// tenant with nil error means no strategy matched and no dev fallback
// is configured.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (*models.Tenant, error) {
	host := normalizeHost(req.Host)

	if host != "" && !isLocalHost(host) && !strings.HasSuffix(host, "."+r.baseDomain) && host != r.baseDomain {
		t, err := r.lookup(ctx, "domain:"+host, func(ctx context.Context) (*models.Tenant, error) {
			return r.tenants.GetByDomain(ctx, host)
		})
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
	}

	if slug := subdomainLabel(host, r.baseDomain); slug != "" {
		t, err := r.lookup(ctx, "slug:"+slug, func(ctx context.Context) (*models.Tenant, error) {
			return r.tenants.GetBySlug(ctx, slug)
		})
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
	}

	if slug := req.URL.Query().Get("tenant"); slug != "" {
		t, err := r.lookup(ctx, "slug:"+slug, func(ctx context.Context) (*models.Tenant, error) {
			return r.tenants.GetBySlug(ctx, slug)
		})
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
	}

	if id := req.Header.Get("x-tenant-id"); id != "" {
		t, err := r.lookup(ctx, "id:"+id, func(ctx context.Context) (*models.Tenant, error) {
			return r.tenants.Get(ctx, id)
		})
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
	}

	if slug := req.Header.Get("x-tenant-slug"); slug != "" {
		t, err := r.lookup(ctx, "slug:"+slug, func(ctx context.Context) (*models.Tenant, error) {
			return r.tenants.GetBySlug(ctx, slug)
		})
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
	}

	if r.devFallbackSlug != "" {
		r.logger.Warn("no tenant matched request, using development fallback",
			slog.String("host", host),
			slog.String("fallback_slug", r.devFallbackSlug))
		t, err := r.lookup(ctx, "slug:"+r.devFallbackSlug, func(ctx context.Context) (*models.Tenant, error) {
			return r.tenants.GetBySlug(ctx, r.devFallbackSlug)
		})
		if err != nil {
			return nil, err
		}
		return t, nil
	}

	return nil, nil
}

// Invalidate drops any cached entries for the tenant so the next
// request re-reads the store.
func (r *Resolver) Invalidate(t *models.Tenant) {
	if t == nil {
		return
	}
	r.cache.Invalidate("id:" + t.ID)
	r.cache.Invalidate("slug:" + t.Slug)
	if t.Domain != "" {
		r.cache.Invalidate("domain:" + t.Domain)
	}
}

// lookup consults the cache before the store. Misses in the store cache
// a nil tenant under the same TTL.
func (r *Resolver) lookup(ctx context.Context, key string, fetch func(context.Context) (*models.Tenant, error)) (*models.Tenant, error) {
	if t, ok := r.cache.Get(key); ok {
		return t, nil
	}

	t, err := fetch(ctx)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			r.cache.Set(key, nil)
			return nil, nil
		}
		return nil, err
	}

	r.cache.Set(key, t)
	return t, nil
}

// normalizeHost strips any port and lowercases the request host.
func normalizeHost(host string) string {
	if host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(host)
}

// isLocalHost reports whether the host is a local development address.
// Local hosts carry no tenant signal in their name, so domain and
// subdomain strategies skip them.
func isLocalHost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// subdomainLabel extracts the tenant slug from a platform subdomain
// like acme.sitedeck.app. Reserved labels and bare or two-label hosts
// yield no slug.
func subdomainLabel(host, baseDomain string) string {
	if host == "" || !strings.HasSuffix(host, "."+baseDomain) {
		return ""
	}
	if len(strings.Split(host, ".")) <= 2 {
		return ""
	}
	label := strings.TrimSuffix(host, "."+baseDomain)
	if strings.Contains(label, ".") {
		// Deeper nesting is not a tenant subdomain.
		return ""
	}
	if label == "www" || label == "app" {
		return ""
	}
	return label
}
