package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/duonordic/sitedeck/internal/models"
	"github.com/duonordic/sitedeck/internal/store"
)

// getTestDSN returns the test database DSN, or empty to skip DB tests.
func getTestDSN() string {
	return os.Getenv("TEST_DATABASE_URL")
}

// setupDeploymentTestDB creates a test database connection and applies
// the schema for deployment testing.
func setupDeploymentTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := getTestDSN()
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database tests")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		t.Fatalf("failed to ping database: %v", err)
	}

	if err := runDeploymentMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

// runDeploymentMigrations applies the database schema for deployment testing.
func runDeploymentMigrations(db *sql.DB) error {
	_, _ = db.Exec("DROP TABLE IF EXISTS audit_logs CASCADE")
	_, _ = db.Exec("DROP TABLE IF EXISTS deployments CASCADE")

	schema := `
		CREATE TABLE deployments (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL,
			template_id UUID NOT NULL,
			name VARCHAR(255) NOT NULL,
			subdomain VARCHAR(63) NOT NULL,
			custom_domain VARCHAR(253),
			status VARCHAR(20) NOT NULL CHECK (status IN (
				'pending', 'queued', 'provisioning', 'building',
				'running', 'stopped', 'failed', 'deleting'
			)),
			env_vars JSONB,
			build_config JSONB,
			provider_deployment_id VARCHAR(255) NOT NULL,
			deployment_url TEXT,
			error_message TEXT,
			build_logs TEXT,
			ssl_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_deployed_at TIMESTAMPTZ,
			deleted_at TIMESTAMPTZ
		);

		CREATE INDEX idx_deployments_tenant_id ON deployments(tenant_id);
		CREATE INDEX idx_deployments_provider_id ON deployments(provider_deployment_id);
		CREATE UNIQUE INDEX idx_deployments_subdomain_pending
			ON deployments(subdomain) WHERE deleted_at IS NULL AND status = 'pending';
		CREATE UNIQUE INDEX idx_deployments_custom_domain
			ON deployments(custom_domain) WHERE deleted_at IS NULL AND custom_domain IS NOT NULL;
	`
	_, err := db.Exec(schema)
	return err
}

// genDeploymentStatus generates a random DeploymentStatus.
func genDeploymentStatus() gopter.Gen {
	return gen.OneConstOf(
		models.DeploymentStatusPending,
		models.DeploymentStatusQueued,
		models.DeploymentStatusProvisioning,
		models.DeploymentStatusBuilding,
		models.DeploymentStatusRunning,
		models.DeploymentStatusStopped,
		models.DeploymentStatusFailed,
		models.DeploymentStatusDeleting,
	)
}

// genSubdomain generates a valid routing subdomain.
func genSubdomain() gopter.Gen {
	return gen.RegexMatch(`[a-z0-9][a-z0-9-]{0,20}[a-z0-9]`)
}

func newDeployment(status models.DeploymentStatus, subdomain string) *models.Deployment {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Deployment{
		ID:                   uuid.New().String(),
		TenantID:             uuid.New().String(),
		TemplateID:           uuid.New().String(),
		Name:                 "Site",
		Subdomain:            subdomain,
		Status:               status,
		EnvVars:              map[string]string{"THEME": "light"},
		ProviderDeploymentID: "dpl_" + uuid.New().String(),
		SSLEnabled:           true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func TestDeploymentRoundTrip(t *testing.T) {
	db := setupDeploymentTestDB(t)
	defer db.Close()

	ds := &DeploymentStore{db: db, logger: slog.Default()}
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("create then get preserves the deployment", prop.ForAll(
		func(status models.DeploymentStatus, subdomain string) bool {
			dep := newDeployment(status, subdomain)
			// The pending-phase unique index forbids duplicate pending
			// subdomains; uniquify per iteration.
			dep.Subdomain = subdomain + "-" + dep.ID[:8]

			if err := ds.Create(ctx, dep); err != nil {
				t.Logf("create failed: %v", err)
				return false
			}
			got, err := ds.Get(ctx, dep.ID)
			if err != nil {
				t.Logf("get failed: %v", err)
				return false
			}
			return got.ID == dep.ID &&
				got.TenantID == dep.TenantID &&
				got.Subdomain == dep.Subdomain &&
				got.Status == dep.Status &&
				got.ProviderDeploymentID == dep.ProviderDeploymentID &&
				reflect.DeepEqual(got.EnvVars, dep.EnvVars)
		},
		genDeploymentStatus(),
		genSubdomain(),
	))

	properties.TestingRun(t)
}

func TestDeploymentPendingSubdomainUniqueness(t *testing.T) {
	db := setupDeploymentTestDB(t)
	defer db.Close()

	ds := &DeploymentStore{db: db, logger: slog.Default()}
	ctx := context.Background()

	first := newDeployment(models.DeploymentStatusPending, "race-sub")
	if err := ds.Create(ctx, first); err != nil {
		t.Fatalf("first create: %v", err)
	}

	second := newDeployment(models.DeploymentStatusPending, "race-sub")
	if err := ds.Create(ctx, second); err != ErrDuplicateKey {
		t.Errorf("second pending create = %v, want ErrDuplicateKey", err)
	}

	// Once the first row leaves pending, a redeploy row may coexist.
	first.Status = models.DeploymentStatusRunning
	if err := ds.Update(ctx, first); err != nil {
		t.Fatalf("promoting first row: %v", err)
	}
	if err := ds.Create(ctx, second); err != nil {
		t.Errorf("pending row alongside running sibling = %v, want success", err)
	}
}

func TestDeploymentUpdateByProviderID(t *testing.T) {
	db := setupDeploymentTestDB(t)
	defer db.Close()

	ds := &DeploymentStore{db: db, logger: slog.Default()}
	ctx := context.Background()

	dep := newDeployment(models.DeploymentStatusBuilding, "hooked")
	dep.DeploymentURL = "https://old.vercel.app"
	if err := ds.Create(ctx, dep); err != nil {
		t.Fatalf("create: %v", err)
	}

	msg := "Deployment failed on hosting provider"
	err := ds.UpdateByProviderID(ctx, dep.ProviderDeploymentID, &store.DeploymentStatusUpdate{
		Status:       models.DeploymentStatusFailed,
		ErrorMessage: &msg,
	})
	if err != nil {
		t.Fatalf("UpdateByProviderID: %v", err)
	}

	got, err := ds.Get(ctx, dep.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.DeploymentStatusFailed || got.ErrorMessage != msg {
		t.Errorf("update not applied: %+v", got)
	}
	// Fields not carried by the update stay untouched.
	if got.DeploymentURL != "https://old.vercel.app" {
		t.Errorf("deployment_url clobbered: %q", got.DeploymentURL)
	}

	if err := ds.UpdateByProviderID(ctx, "dpl_unknown", &store.DeploymentStatusUpdate{
		Status: models.DeploymentStatusFailed,
	}); err != ErrNotFound {
		t.Errorf("unknown provider id = %v, want ErrNotFound", err)
	}
}

func TestDeploymentListStale(t *testing.T) {
	db := setupDeploymentTestDB(t)
	defer db.Close()

	ds := &DeploymentStore{db: db, logger: slog.Default()}
	ctx := context.Background()

	old := newDeployment(models.DeploymentStatusBuilding, "old-build")
	old.CreatedAt = time.Now().UTC().Add(-45 * time.Minute)
	fresh := newDeployment(models.DeploymentStatusBuilding, "fresh-build")

	for _, dep := range []*models.Deployment{old, fresh} {
		if err := ds.Create(ctx, dep); err != nil {
			t.Fatalf("create %s: %v", dep.Subdomain, err)
		}
	}

	cutoff := time.Now().UTC().Add(-30 * time.Minute)
	stale, err := ds.ListStale(ctx, cutoff, models.DeploymentStatusProvisioning, models.DeploymentStatusBuilding)
	if err != nil {
		t.Fatalf("ListStale: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != old.ID {
		t.Errorf("stale = %v", stale)
	}
}
