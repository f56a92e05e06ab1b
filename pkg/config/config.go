// Package config provides environment-based configuration for the control plane.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the control plane.
type Config struct {
	// Database configuration
	DatabaseDSN string `yaml:"database_dsn"`

	// Server configuration
	APIHost string `yaml:"api_host"`
	APIPort int    `yaml:"api_port"`

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Tenant routing
	Tenant TenantConfig `yaml:"tenant"`

	// Hosting provider API
	Hosting HostingConfig `yaml:"hosting"`

	// Webhook verification
	Webhook WebhookConfig `yaml:"webhook"`

	// Monitor sweeps
	Monitor MonitorConfig `yaml:"monitor"`
}

// TenantConfig holds tenant-resolution configuration.
type TenantConfig struct {
	// BaseDomain is the platform's own apex domain; hosts under it are
	// resolved by subdomain label rather than custom-domain lookup.
	BaseDomain string `yaml:"base_domain"`
	// CacheTTL bounds how long a resolved tenant stays fresh in the cache.
	CacheTTL time.Duration `yaml:"cache_ttl"`
	// DevFallbackSlug, when set, is resolved as a last resort for local
	// development requests that carry no tenant signal.
	DevFallbackSlug string `yaml:"dev_fallback_slug"`
}

// HostingConfig holds external hosting provider configuration.
type HostingConfig struct {
	// APIToken authenticates calls to the hosting provider. Required.
	APIToken string `yaml:"api_token"`
	// TeamID optionally scopes API calls to a team/organization.
	TeamID string `yaml:"team_id"`
	// BaseURL overrides the provider endpoint, mainly for tests.
	BaseURL string `yaml:"base_url"`
	// RequestTimeout bounds each outbound provider call.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// DeployApex is the domain under which default deployment URLs live.
	DeployApex string `yaml:"deploy_apex"`
}

// WebhookConfig holds webhook signature verification configuration.
type WebhookConfig struct {
	// Secret is the shared HMAC secret. Empty means fail-closed: all
	// webhook calls are rejected.
	Secret string `yaml:"secret"`
}

// MonitorConfig holds deployment monitor configuration.
type MonitorConfig struct {
	HealthSchedule    string        `yaml:"health_schedule"`
	StalenessSchedule string        `yaml:"staleness_schedule"`
	StaleAfter        time.Duration `yaml:"stale_after"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFile reads configuration from a YAML file, with environment
// variables providing defaults for any field the file omits.
func LoadFile(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Hosting.APIToken == "" {
		return fmt.Errorf("HOSTING_API_TOKEN is required")
	}
	return nil
}

// LoadWithDefaults loads configuration with defaults for development.
// It does not validate required fields, useful for testing.
func LoadWithDefaults() *Config {
	return defaults()
}

func defaults() *Config {
	return &Config{
		DatabaseDSN:     getEnv("DATABASE_URL", "postgres://localhost:5432/sitedeck?sslmode=disable"),
		APIHost:         getEnv("API_HOST", "0.0.0.0"),
		APIPort:         getIntEnv("API_PORT", 8080),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		Tenant: TenantConfig{
			BaseDomain:      getEnv("TENANT_BASE_DOMAIN", "sitedeck.app"),
			CacheTTL:        getDurationEnv("TENANT_CACHE_TTL", 5*time.Minute),
			DevFallbackSlug: getEnv("TENANT_DEV_FALLBACK_SLUG", ""),
		},
		Hosting: HostingConfig{
			APIToken:       getEnv("HOSTING_API_TOKEN", ""),
			TeamID:         getEnv("HOSTING_TEAM_ID", ""),
			BaseURL:        getEnv("HOSTING_API_URL", "https://api.vercel.com"),
			RequestTimeout: getDurationEnv("HOSTING_REQUEST_TIMEOUT", 30*time.Second),
			DeployApex:     getEnv("HOSTING_DEPLOY_APEX", "vercel.app"),
		},
		Webhook: WebhookConfig{
			Secret: getEnv("HOSTING_WEBHOOK_SECRET", ""),
		},
		Monitor: MonitorConfig{
			HealthSchedule:    getEnv("MONITOR_HEALTH_SCHEDULE", "@every 5m"),
			StalenessSchedule: getEnv("MONITOR_STALENESS_SCHEDULE", "@every 10m"),
			StaleAfter:        getDurationEnv("MONITOR_STALE_AFTER", 30*time.Minute),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
