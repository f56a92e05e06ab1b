// Package storetest provides an in-memory Store implementation for
// tests. Semantics mirror the postgres implementation, including its
// sentinel errors and soft-delete filters.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/duonordic/sitedeck/internal/models"
	"github.com/duonordic/sitedeck/internal/store"
	"github.com/duonordic/sitedeck/internal/store/postgres"
)

// MemStore is an in-memory store.Store safe for concurrent use.
type MemStore struct {
	mu          sync.Mutex
	tenants     map[string]*models.Tenant
	templates   map[string]*models.Template
	deployments map[string]*models.Deployment
	auditLogs   []*models.AuditLog
}

// New creates an empty in-memory store.
func New() *MemStore {
	return &MemStore{
		tenants:     make(map[string]*models.Tenant),
		templates:   make(map[string]*models.Template),
		deployments: make(map[string]*models.Deployment),
	}
}

func (s *MemStore) Tenants() store.TenantStore         { return (*memTenants)(s) }
func (s *MemStore) Templates() store.TemplateStore     { return (*memTemplates)(s) }
func (s *MemStore) Deployments() store.DeploymentStore { return (*memDeployments)(s) }
func (s *MemStore) AuditLogs() store.AuditLogStore     { return (*memAuditLogs)(s) }

// WithTx runs fn against the same store; the fake has no transaction
// isolation.
func (s *MemStore) WithTx(ctx context.Context, fn func(store.Store) error) error {
	return fn(s)
}

func (s *MemStore) Close() error { return nil }

// Ping always succeeds.
func (s *MemStore) Ping(ctx context.Context) error { return nil }

// AuditEntries returns a copy of the recorded audit log.
func (s *MemStore) AuditEntries() []*models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.AuditLog, len(s.auditLogs))
	copy(out, s.auditLogs)
	return out
}

type memTenants MemStore

func (s *memTenants) Create(ctx context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tenants {
		if t.Slug == tenant.Slug && t.DeletedAt == nil {
			return postgres.ErrDuplicateKey
		}
	}
	cp := *tenant
	s.tenants[tenant.ID] = &cp
	return nil
}

func (s *memTenants) Get(ctx context.Context, id string) (*models.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok || t.DeletedAt != nil || t.Status == models.TenantStatusCancelled {
		return nil, postgres.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memTenants) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tenants {
		if t.Slug == slug && t.DeletedAt == nil && t.Status != models.TenantStatusCancelled {
			cp := *t
			return &cp, nil
		}
	}
	return nil, postgres.ErrNotFound
}

func (s *memTenants) GetByDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tenants {
		if t.Domain != "" && t.Domain == domain && t.DeletedAt == nil && t.Status != models.TenantStatusCancelled {
			cp := *t
			return &cp, nil
		}
	}
	return nil, postgres.ErrNotFound
}

func (s *memTenants) List(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Tenant
	for _, t := range s.tenants {
		if t.DeletedAt == nil {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, limit, offset), nil
}

func (s *memTenants) Update(ctx context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[tenant.ID]; !ok {
		return postgres.ErrNotFound
	}
	cp := *tenant
	s.tenants[tenant.ID] = &cp
	return nil
}

func (s *memTenants) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok {
		return postgres.ErrNotFound
	}
	now := time.Now().UTC()
	t.Status = models.TenantStatusCancelled
	t.DeletedAt = &now
	return nil
}

type memTemplates MemStore

func (s *memTemplates) Create(ctx context.Context, template *models.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.templates {
		if t.Slug == template.Slug {
			return postgres.ErrDuplicateKey
		}
	}
	cp := *template
	s.templates[template.ID] = &cp
	return nil
}

func (s *memTemplates) Get(ctx context.Context, idOrSlug string) (*models.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.templates {
		if (t.ID == idOrSlug || t.Slug == idOrSlug) && t.IsPublished {
			cp := *t
			return &cp, nil
		}
	}
	return nil, postgres.ErrNotFound
}

func (s *memTemplates) List(ctx context.Context, limit, offset int) ([]*models.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Template
	for _, t := range s.templates {
		if t.IsPublished {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeployCount > out[j].DeployCount })
	return paginate(out, limit, offset), nil
}

func (s *memTemplates) Update(ctx context.Context, template *models.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[template.ID]; !ok {
		return postgres.ErrNotFound
	}
	cp := *template
	s.templates[template.ID] = &cp
	return nil
}

func (s *memTemplates) Publish(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok {
		return postgres.ErrNotFound
	}
	t.IsPublished = true
	return nil
}

func (s *memTemplates) IncrementDeployCount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok {
		return postgres.ErrNotFound
	}
	t.DeployCount++
	return nil
}

type memDeployments MemStore

func (s *memDeployments) Create(ctx context.Context, deployment *models.Deployment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *deployment
	s.deployments[deployment.ID] = &cp
	return nil
}

func (s *memDeployments) Get(ctx context.Context, id string) (*models.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deployments[id]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *memDeployments) GetByProviderID(ctx context.Context, providerID string) (*models.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.deployments {
		if d.ProviderDeploymentID == providerID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, postgres.ErrNotFound
}

func (s *memDeployments) GetBySubdomain(ctx context.Context, subdomain string) (*models.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.Deployment
	for _, d := range s.deployments {
		if d.Subdomain != subdomain || d.DeletedAt != nil || d.Status != models.DeploymentStatusRunning {
			continue
		}
		if latest == nil || d.CreatedAt.After(latest.CreatedAt) {
			latest = d
		}
	}
	if latest == nil {
		return nil, postgres.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *memDeployments) List(ctx context.Context, tenantID string) ([]*models.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Deployment
	for _, d := range s.deployments {
		if d.TenantID == tenantID && d.DeletedAt == nil {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memDeployments) ListByStatus(ctx context.Context, statuses ...models.DeploymentStatus) ([]*models.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Deployment
	for _, d := range s.deployments {
		if d.DeletedAt == nil && statusIn(d.Status, statuses) {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memDeployments) ListStale(ctx context.Context, cutoff time.Time, statuses ...models.DeploymentStatus) ([]*models.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Deployment
	for _, d := range s.deployments {
		if d.DeletedAt == nil && statusIn(d.Status, statuses) && d.CreatedAt.Before(cutoff) {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memDeployments) Update(ctx context.Context, deployment *models.Deployment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deployments[deployment.ID]; !ok {
		return postgres.ErrNotFound
	}
	cp := *deployment
	s.deployments[deployment.ID] = &cp
	return nil
}

func (s *memDeployments) UpdateByProviderID(ctx context.Context, providerID string, update *store.DeploymentStatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.deployments {
		if d.ProviderDeploymentID != providerID {
			continue
		}
		d.Status = update.Status
		if update.DeploymentURL != nil {
			d.DeploymentURL = *update.DeploymentURL
		}
		if update.ErrorMessage != nil {
			d.ErrorMessage = *update.ErrorMessage
		}
		if update.BuildLogs != nil {
			d.BuildLogs = *update.BuildLogs
		}
		if update.LastDeployedAt != nil {
			t := *update.LastDeployedAt
			d.LastDeployedAt = &t
		}
		d.UpdatedAt = time.Now().UTC()
		return nil
	}
	return postgres.ErrNotFound
}

func (s *memDeployments) CountTakenSubdomain(ctx context.Context, subdomain string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.deployments {
		if d.Subdomain == subdomain && d.DeletedAt == nil {
			return true, nil
		}
	}
	return false, nil
}

func (s *memDeployments) CountTakenDomain(ctx context.Context, domain string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.deployments {
		if d.CustomDomain == domain && d.DeletedAt == nil {
			return true, nil
		}
	}
	return false, nil
}

type memAuditLogs MemStore

func (s *memAuditLogs) Create(ctx context.Context, entry *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	s.auditLogs = append(s.auditLogs, &cp)
	return nil
}

func statusIn(status models.DeploymentStatus, statuses []models.DeploymentStatus) bool {
	for _, st := range statuses {
		if st == status {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
