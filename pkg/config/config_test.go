package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadRequiresAPIToken(t *testing.T) {
	t.Setenv("HOSTING_API_TOKEN", "")

	if _, err := Load(); err == nil {
		t.Error("expected error when HOSTING_API_TOKEN is unset")
	}

	t.Setenv("HOSTING_API_TOKEN", "tok_test")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Hosting.APIToken != "tok_test" {
		t.Errorf("APIToken = %q", cfg.Hosting.APIToken)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HOSTING_API_TOKEN", "tok_test")
	t.Setenv("TENANT_BASE_DOMAIN", "example.dev")
	t.Setenv("TENANT_CACHE_TTL", "90s")
	t.Setenv("API_PORT", "9090")
	t.Setenv("MONITOR_STALE_AFTER", "45m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Tenant.BaseDomain != "example.dev" {
		t.Errorf("BaseDomain = %q", cfg.Tenant.BaseDomain)
	}
	if cfg.Tenant.CacheTTL != 90*time.Second {
		t.Errorf("CacheTTL = %v", cfg.Tenant.CacheTTL)
	}
	if cfg.APIPort != 9090 {
		t.Errorf("APIPort = %d", cfg.APIPort)
	}
	if cfg.Monitor.StaleAfter != 45*time.Minute {
		t.Errorf("StaleAfter = %v", cfg.Monitor.StaleAfter)
	}
}

func TestLoadFileLayersOverDefaults(t *testing.T) {
	t.Setenv("HOSTING_API_TOKEN", "tok_env")
	t.Setenv("TENANT_BASE_DOMAIN", "env.example")

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
api_port: 8181
tenant:
  base_domain: file.example
  dev_fallback_slug: demo
monitor:
  health_schedule: "@every 1m"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	// File values win over env defaults.
	if cfg.APIPort != 8181 {
		t.Errorf("APIPort = %d", cfg.APIPort)
	}
	if cfg.Tenant.BaseDomain != "file.example" {
		t.Errorf("BaseDomain = %q", cfg.Tenant.BaseDomain)
	}
	if cfg.Tenant.DevFallbackSlug != "demo" {
		t.Errorf("DevFallbackSlug = %q", cfg.Tenant.DevFallbackSlug)
	}
	if cfg.Monitor.HealthSchedule != "@every 1m" {
		t.Errorf("HealthSchedule = %q", cfg.Monitor.HealthSchedule)
	}
	// Fields the file omits keep their env-derived values.
	if cfg.Hosting.APIToken != "tok_env" {
		t.Errorf("APIToken = %q", cfg.Hosting.APIToken)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestDefaultSchedules(t *testing.T) {
	cfg := LoadWithDefaults()
	if cfg.Monitor.HealthSchedule == "" || cfg.Monitor.StalenessSchedule == "" {
		t.Errorf("monitor schedules unset: %+v", cfg.Monitor)
	}
	if cfg.Tenant.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL default = %v", cfg.Tenant.CacheTTL)
	}
}
