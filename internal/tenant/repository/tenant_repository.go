package repository

import (
	tenantdomain "deskmail-backend/internal/tenant/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type tenantRepository struct {
	db *gorm.DB
}

func NewTenantRepository(db *gorm.DB) TenantRepository {
	return &tenantRepository{db: db}
}

func (r *tenantRepository) Get(tenantID string) (*tenantdomain.Tenant, error) {
	var tenant tenantdomain.Tenant
	err := r.db.Where("id = ?", tenantID).First(&tenant).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *tenantRepository) List() ([]tenantdomain.Tenant, error) {
	var tenants []tenantdomain.Tenant
	if err := r.db.Order("name ASC").Find(&tenants).Error; err != nil {
		return nil, err
	}
	return tenants, nil
}

func (r *tenantRepository) Create(tenant *tenantdomain.Tenant) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(tenant).Error; err != nil {
			return err
		}
		settings := tenantdomain.DefaultSettings(tenant.ID)
		if err := tx.Create(&settings).Error; err != nil {
			return err
		}
		rules := tenantdomain.DefaultRoutingRules(tenant.ID)
		return tx.Create(&rules).Error
	})
}

func (r *tenantRepository) Update(tenant *tenantdomain.Tenant) error {
	return r.db.Save(tenant).Error
}

type settingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Get(tenantID string) (tenantdomain.TenantSettings, error) {
	var settings tenantdomain.TenantSettings
	err := r.db.Where("tenant_id = ?", tenantID).First(&settings).Error
	if err == gorm.ErrRecordNotFound {
		return tenantdomain.DefaultSettings(tenantID), nil
	}
	if err != nil {
		return tenantdomain.TenantSettings{}, err
	}
	return settings, nil
}

func (r *settingsRepository) Upsert(settings tenantdomain.TenantSettings) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}},
		UpdateAll: true,
	}).Create(&settings).Error
}

type routingRuleRepository struct {
	db *gorm.DB
}

func NewRoutingRuleRepository(db *gorm.DB) RoutingRuleRepository {
	return &routingRuleRepository{db: db}
}

func (r *routingRuleRepository) List(tenantID string) ([]tenantdomain.RoutingRule, error) {
	var rules []tenantdomain.RoutingRule
	if err := r.db.Where("tenant_id = ?", tenantID).Order("category ASC").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *routingRuleRepository) Replace(tenantID string, rules []tenantdomain.RoutingRule) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tenant_id = ?", tenantID).Delete(&tenantdomain.RoutingRule{}).Error; err != nil {
			return err
		}
		if len(rules) == 0 {
			return nil
		}
		for i := range rules {
			rules[i].TenantID = tenantID
		}
		return tx.Create(&rules).Error
	})
}
