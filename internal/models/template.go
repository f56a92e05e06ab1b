package models

import "time"

// TemplateCategory groups templates in the catalog.
type TemplateCategory string

const (
	TemplateCategoryLanding   TemplateCategory = "landing"
	TemplateCategoryEcommerce TemplateCategory = "ecommerce"
	TemplateCategoryBlog      TemplateCategory = "blog"
	TemplateCategoryPortfolio TemplateCategory = "portfolio"
	TemplateCategoryOther     TemplateCategory = "other"
)

// Template is a reusable, git-backed application blueprint with default
// configuration. Templates are owned by the platform, not by a tenant.
type Template struct {
	ID           string            `json:"id"`
	Slug         string            `json:"slug"`
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Category     TemplateCategory  `json:"category"`
	RepoURL      string            `json:"repo_url"`
	RepoBranch   string            `json:"repo_branch"`
	ThumbnailURL string            `json:"thumbnail_url,omitempty"`
	DemoURL      string            `json:"demo_url,omitempty"`
	ConfigSchema map[string]any    `json:"config_schema,omitempty"`
	DefaultEnv   map[string]string `json:"default_env,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	IsPublished  bool              `json:"is_published"`
	DeployCount  int               `json:"deploy_count"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}
