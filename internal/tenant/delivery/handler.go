package delivery

import (
	"net/http"
	"strconv"

	auditrepo "deskmail-backend/internal/audit/repository"
	tenantdomain "deskmail-backend/internal/tenant/domain"
	tenantrepo "deskmail-backend/internal/tenant/repository"

	"github.com/gin-gonic/gin"
)

type TenantHandler struct {
	settings tenantrepo.SettingsRepository
	routing  tenantrepo.RoutingRuleRepository
	usage    tenantrepo.AIUsageRepository
	audit    auditrepo.EventRepository
}

func NewTenantHandler(
	settings tenantrepo.SettingsRepository,
	routing tenantrepo.RoutingRuleRepository,
	usage tenantrepo.AIUsageRepository,
	audit auditrepo.EventRepository,
) *TenantHandler {
	return &TenantHandler{settings: settings, routing: routing, usage: usage, audit: audit}
}

func (h *TenantHandler) GetSettings(c *gin.Context) {
	settings, err := h.settings.Get(c.GetString("tenantID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settings)
}

type updateSettingsRequest struct {
	AITriageEnabled *bool `json:"ai_triage_enabled"`
	AIDraftEnabled  *bool `json:"ai_draft_enabled"`
	AIReviewEnabled *bool `json:"ai_review_enabled"`
	RetentionDays   *int  `json:"retention_days"`
}

func (h *TenantHandler) UpdateSettings(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tenantID := c.GetString("tenantID")
	settings, err := h.settings.Get(tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if req.AITriageEnabled != nil {
		settings.AITriageEnabled = *req.AITriageEnabled
	}
	if req.AIDraftEnabled != nil {
		settings.AIDraftEnabled = *req.AIDraftEnabled
	}
	if req.AIReviewEnabled != nil {
		settings.AIReviewEnabled = *req.AIReviewEnabled
	}
	if req.RetentionDays != nil {
		if *req.RetentionDays < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "retention_days must be positive"})
			return
		}
		settings.RetentionDays = *req.RetentionDays
	}
	settings.TenantID = tenantID
	if err := h.settings.Upsert(settings); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *TenantHandler) GetRoutingRules(c *gin.Context) {
	rules, err := h.routing.List(c.GetString("tenantID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

type updateRoutingRequest struct {
	Rules []struct {
		Category string `json:"category" binding:"required"`
		Queue    string `json:"queue" binding:"required"`
	} `json:"rules" binding:"required"`
}

func (h *TenantHandler) UpdateRoutingRules(c *gin.Context) {
	var req updateRoutingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tenantID := c.GetString("tenantID")
	rules := make([]tenantdomain.RoutingRule, 0, len(req.Rules))
	for _, rule := range req.Rules {
		rules = append(rules, tenantdomain.RoutingRule{
			TenantID: tenantID,
			Category: tenantdomain.TriageCategory(rule.Category),
			Queue:    rule.Queue,
		})
	}
	if err := h.routing.Replace(tenantID, rules); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

func (h *TenantHandler) GetAuditLog(c *gin.Context) {
	limit := 100
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	events, err := h.audit.List(c.GetString("tenantID"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "total": len(events)})
}

func (h *TenantHandler) GetAIUsage(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	summary, err := h.usage.Summary(tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	rows, err := h.usage.List(tenantID, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary, "recent": rows})
}
