package repository

import (
	tenantdomain "deskmail-backend/internal/tenant/domain"
)

type TenantRepository interface {
	Get(tenantID string) (*tenantdomain.Tenant, error)
	List() ([]tenantdomain.Tenant, error)
	// Create also installs default settings and routing rules.
	Create(tenant *tenantdomain.Tenant) error
	Update(tenant *tenantdomain.Tenant) error
}

type SettingsRepository interface {
	// Get returns defaults when no row exists.
	Get(tenantID string) (tenantdomain.TenantSettings, error)
	Upsert(settings tenantdomain.TenantSettings) error
}

type RoutingRuleRepository interface {
	List(tenantID string) ([]tenantdomain.RoutingRule, error)
	// Replace swaps the tenant's full rule set atomically.
	Replace(tenantID string, rules []tenantdomain.RoutingRule) error
}

type AIUsageRepository interface {
	Add(usage tenantdomain.AIUsage) error
	Summary(tenantID string) (tenantdomain.AIUsageSummary, error)
	List(tenantID string, limit int) ([]tenantdomain.AIUsage, error)
}
