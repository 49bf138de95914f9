package repository

import (
	tenantdomain "deskmail-backend/internal/tenant/domain"

	"gorm.io/gorm"
)

type aiUsageRepository struct {
	db *gorm.DB
}

func NewAIUsageRepository(db *gorm.DB) AIUsageRepository {
	return &aiUsageRepository{db: db}
}

func (r *aiUsageRepository) Add(usage tenantdomain.AIUsage) error {
	return r.db.Create(&usage).Error
}

func (r *aiUsageRepository) Summary(tenantID string) (tenantdomain.AIUsageSummary, error) {
	var row struct {
		Count            int
		TotalCost        float64
		PromptTokens     int
		CompletionTokens int
	}
	err := r.db.Model(&tenantdomain.AIUsage{}).
		Select("COUNT(*) as count, COALESCE(SUM(cost_usd), 0) as total_cost, COALESCE(SUM(prompt_tokens), 0) as prompt_tokens, COALESCE(SUM(completion_tokens), 0) as completion_tokens").
		Where("tenant_id = ?", tenantID).
		Scan(&row).Error
	if err != nil {
		return tenantdomain.AIUsageSummary{}, err
	}
	return tenantdomain.AIUsageSummary{
		Count:            row.Count,
		TotalCostUSD:     row.TotalCost,
		PromptTokens:     row.PromptTokens,
		CompletionTokens: row.CompletionTokens,
	}, nil
}

func (r *aiUsageRepository) List(tenantID string, limit int) ([]tenantdomain.AIUsage, error) {
	if limit <= 0 {
		limit = 50
	}
	var usage []tenantdomain.AIUsage
	err := r.db.Where("tenant_id = ?", tenantID).
		Order("created_at DESC").Limit(limit).Find(&usage).Error
	if err != nil {
		return nil, err
	}
	return usage, nil
}
