package domain

import "time"

type Tenant struct {
	ID             string `json:"id" gorm:"primaryKey"`
	Name           string `json:"name"`
	PrimaryMailbox string `json:"primary_mailbox"`
}

// TenantSettings gates the per-tenant AI features. A tenant without a stored
// row gets the zero-feature defaults.
type TenantSettings struct {
	TenantID        string `json:"tenant_id" gorm:"primaryKey"`
	AITriageEnabled bool   `json:"ai_triage_enabled"`
	AIDraftEnabled  bool   `json:"ai_draft_enabled"`
	AIReviewEnabled bool   `json:"ai_review_enabled"`
	RetentionDays   int    `json:"retention_days"`
}

func DefaultSettings(tenantID string) TenantSettings {
	return TenantSettings{
		TenantID:      tenantID,
		RetentionDays: 90,
	}
}

type TriageCategory string

const (
	CategoryBilling     TriageCategory = "billing"
	CategoryBug         TriageCategory = "bug"
	CategoryAccount     TriageCategory = "account"
	CategoryFeature     TriageCategory = "feature"
	CategoryLegal       TriageCategory = "legal"
	CategoryPartnership TriageCategory = "partnership"
	CategoryOther       TriageCategory = "other"
)

// RoutingRule maps a triage category to the queue a tenant wants it filed
// under, overriding whatever the classifier suggested.
type RoutingRule struct {
	TenantID string         `json:"tenant_id" gorm:"primaryKey"`
	Category TriageCategory `json:"category" gorm:"primaryKey"`
	Queue    string         `json:"queue"`
}

// DefaultRoutingRules are installed when a tenant is created.
func DefaultRoutingRules(tenantID string) []RoutingRule {
	defaults := []struct {
		category TriageCategory
		queue    string
	}{
		{CategoryBilling, "Billing"},
		{CategoryBug, "Support"},
		{CategoryAccount, "Account"},
		{CategoryFeature, "Product"},
		{CategoryLegal, "Legal"},
		{CategoryPartnership, "Partnerships"},
		{CategoryOther, "General"},
	}
	rules := make([]RoutingRule, 0, len(defaults))
	for _, d := range defaults {
		rules = append(rules, RoutingRule{TenantID: tenantID, Category: d.category, Queue: d.queue})
	}
	return rules
}

// AIUsage is one accounting row per classifier call.
type AIUsage struct {
	ID               string    `json:"id" gorm:"primaryKey"`
	TenantID         string    `json:"tenant_id" gorm:"index"`
	Action           string    `json:"action"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	CostUSD          float64   `json:"cost_usd"`
	CreatedAt        time.Time `json:"created_at"`
}

type AIUsageSummary struct {
	Count            int     `json:"count"`
	TotalCostUSD     float64 `json:"total_cost_usd"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
}
