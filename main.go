package main

import (
	"context"
	"log"
	"strings"
	"time"

	api "deskmail-backend/cmd/api"
	auditrepo "deskmail-backend/internal/audit/repository"
	jobdelivery "deskmail-backend/internal/job/delivery"
	jobrepo "deskmail-backend/internal/job/repository"
	jobusecase "deskmail-backend/internal/job/usecase"
	"deskmail-backend/internal/mailbox"
	"deskmail-backend/internal/notification"
	syncdelivery "deskmail-backend/internal/sync/delivery"
	syncusecase "deskmail-backend/internal/sync/usecase"
	tenantdelivery "deskmail-backend/internal/tenant/delivery"
	tenantdomain "deskmail-backend/internal/tenant/domain"
	tenantrepo "deskmail-backend/internal/tenant/repository"
	threaddelivery "deskmail-backend/internal/thread/delivery"
	threaddomain "deskmail-backend/internal/thread/domain"
	threadrepo "deskmail-backend/internal/thread/repository"
	threadusecase "deskmail-backend/internal/thread/usecase"
	triageusecase "deskmail-backend/internal/triage/usecase"
	"deskmail-backend/pkg/ai"
	"deskmail-backend/pkg/config"
	"deskmail-backend/pkg/database"
	"deskmail-backend/pkg/gmail"
	"deskmail-backend/pkg/openai"

	"github.com/google/uuid"
)

// usageSink writes classifier usage accounting rows; recording never fails
// the classification.
type usageSink struct {
	usage tenantrepo.AIUsageRepository
}

func (s *usageSink) RecordUsage(usage ai.Usage) {
	row := tenantdomain.AIUsage{
		ID:               uuid.NewString(),
		TenantID:         usage.TenantID,
		Action:           usage.Action,
		Model:            usage.Model,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		CostUSD:          usage.CostUSD,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.usage.Add(row); err != nil {
		log.Printf("[AI] failed to record usage for tenant %s: %v", usage.TenantID, err)
	}
}

func main() {
	cfg := config.Load()

	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&threadrepo.ThreadRecord{},
		&threaddomain.MailboxSyncState{},
		&tenantdomain.Tenant{},
		&tenantdomain.TenantSettings{},
		&tenantdomain.RoutingRule{},
		&tenantdomain.AIUsage{},
		&auditrepo.EventRecord{},
		&jobrepo.JobRecord{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Repositories
	threadRepository := threadrepo.NewThreadRepository(db)
	syncStateRepository := threadrepo.NewSyncStateRepository(db)
	tenantRepository := tenantrepo.NewTenantRepository(db)
	settingsRepository := tenantrepo.NewSettingsRepository(db)
	routingRepository := tenantrepo.NewRoutingRuleRepository(db)
	usageRepository := tenantrepo.NewAIUsageRepository(db)
	auditRepository := auditrepo.NewEventRepository(db)
	jobRepository := jobrepo.NewJobRepository(db)

	registry := mailbox.NewRegistry(cfg.Mailboxes)
	ensureTenants(registry, tenantRepository)

	gmailService := gmail.NewService(cfg.GmailClientEmail, cfg.GmailPrivateKey)
	if !gmailService.Configured() {
		log.Println("[WARN] Gmail credentials not configured, running in offline mode")
	}

	var classifier ai.Classifier
	if cfg.OpenAIAPIKey != "" {
		classifier = openai.NewService(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel,
			cfg.CostPer1MInput, cfg.CostPer1MOutput, &usageSink{usage: usageRepository})
		log.Printf("[AI] triage classifier initialized with model %s", cfg.OpenAIModel)
	} else {
		log.Println("[WARN] OPENAI_API_KEY not set, AI triage disabled")
	}

	// Use cases
	triageOrchestrator := triageusecase.NewOrchestrator(
		classifier, threadRepository, registry, settingsRepository, routingRepository,
		auditRepository, jobRepository, cfg.AITriageEnabled)
	syncEngine := syncusecase.NewSyncEngine(
		threadRepository, syncStateRepository, registry, gmailService,
		triageOrchestrator, pubsubTopic(cfg))
	threadUsecase := threadusecase.NewThreadUsecase(threadRepository, registry, gmailService, auditRepository)
	jobRunner := jobusecase.NewRunner(jobRepository, triageOrchestrator, syncEngine)

	// Pub/Sub pull subscriber, only when a project is configured
	if cfg.GoogleProjectID != "" {
		notifService, err := notification.NewService(context.Background(), cfg.GoogleProjectID, shortTopicName(pubsubTopic(cfg)), syncEngine)
		if err != nil {
			log.Printf("[ERROR] Failed to initialize notification service: %v", err)
		} else {
			go notifService.Start(context.Background())
		}
	} else {
		log.Println("[WARN] GOOGLE_PROJECT_ID not configured, notification service disabled")
	}

	// HTTP delivery
	threadHandler := threaddelivery.NewThreadHandler(threadUsecase)
	syncHandler := syncdelivery.NewSyncHandler(syncEngine, cfg.WebhookSecret)
	tenantHandler := tenantdelivery.NewTenantHandler(settingsRepository, routingRepository, usageRepository, auditRepository)
	jobHandler := jobdelivery.NewJobHandler(jobRepository, jobRunner)

	handler := api.NewHandler(cfg, threadHandler, syncHandler, tenantHandler, jobHandler)

	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

// ensureTenants creates a tenant row (with default settings and routing
// rules) for every tenant the mailbox registry mentions.
func ensureTenants(registry *mailbox.Registry, tenants tenantrepo.TenantRepository) {
	seen := make(map[string]bool)
	for _, mb := range registry.All() {
		if seen[mb.TenantID] {
			continue
		}
		seen[mb.TenantID] = true
		existing, err := tenants.Get(mb.TenantID)
		if err != nil {
			log.Printf("[WARN] failed to look up tenant %s: %v", mb.TenantID, err)
			continue
		}
		if existing != nil {
			continue
		}
		if err := tenants.Create(&tenantdomain.Tenant{
			ID:             mb.TenantID,
			Name:           mb.TenantID,
			PrimaryMailbox: mb.ID,
		}); err != nil {
			log.Printf("[WARN] failed to create tenant %s: %v", mb.TenantID, err)
		}
	}
}

func pubsubTopic(cfg *config.Config) string {
	if cfg.PubSubTopic != "" {
		return cfg.PubSubTopic
	}
	return "gmail-updates"
}

// shortTopicName strips the projects/…/topics/ prefix when the topic is
// given as a full resource name.
func shortTopicName(topic string) string {
	if parts := strings.Split(topic, "/"); len(parts) > 1 {
		return parts[len(parts)-1]
	}
	return topic
}
