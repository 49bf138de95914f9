package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	auditdomain "deskmail-backend/internal/audit/domain"
	auditrepo "deskmail-backend/internal/audit/repository"
	jobdomain "deskmail-backend/internal/job/domain"
	jobrepo "deskmail-backend/internal/job/repository"
	"deskmail-backend/internal/mailbox"
	tenantrepo "deskmail-backend/internal/tenant/repository"
	threaddomain "deskmail-backend/internal/thread/domain"
	threadrepo "deskmail-backend/internal/thread/repository"
	"deskmail-backend/pkg/ai"

	"github.com/google/uuid"
)

// Orchestrator runs AI triage over inbound threads. It classifies at most
// once per message: the triage note's deterministic id doubles as the
// idempotency key, so re-syncing a thread never re-classifies it.
type Orchestrator struct {
	classifier ai.Classifier
	threads    threadrepo.ThreadRepository
	registry   *mailbox.Registry
	settings   tenantrepo.SettingsRepository
	routing    tenantrepo.RoutingRuleRepository
	audit      auditrepo.EventRepository
	jobs       jobrepo.JobRepository
	enabled    bool
}

func NewOrchestrator(
	classifier ai.Classifier,
	threads threadrepo.ThreadRepository,
	registry *mailbox.Registry,
	settings tenantrepo.SettingsRepository,
	routing tenantrepo.RoutingRuleRepository,
	audit auditrepo.EventRepository,
	jobs jobrepo.JobRepository,
	enabled bool,
) *Orchestrator {
	return &Orchestrator{
		classifier: classifier,
		threads:    threads,
		registry:   registry,
		settings:   settings,
		routing:    routing,
		audit:      audit,
		jobs:       jobs,
		enabled:    enabled,
	}
}

// MaybeTriage classifies the thread's latest message if triage is enabled for
// the tenant and the message was not classified before. It mutates the thread
// in place and reports whether it did; the caller persists. A classifier
// failure is recorded in the audit log and queued for retry, never propagated.
func (o *Orchestrator) MaybeTriage(ctx context.Context, thread *threaddomain.Thread) bool {
	last, ok := o.shouldTriage(thread)
	if !ok {
		return false
	}
	if err := o.applyTriage(ctx, thread, last); err != nil {
		log.Printf("[Triage] classification failed for thread %s: %v", thread.ID, err)
		o.recordFailure(thread, last, err)
		return false
	}
	return true
}

// RetryTriage re-runs classification for a thread whose earlier attempt
// failed. Unlike MaybeTriage it persists the thread itself and surfaces the
// error, so the job runner can mark the job failed.
func (o *Orchestrator) RetryTriage(ctx context.Context, tenantID, threadID string) error {
	thread, err := o.threads.Get(tenantID, threadID)
	if err != nil {
		return fmt.Errorf("load thread %s: %w", threadID, err)
	}
	if thread == nil {
		return fmt.Errorf("thread %s not found", threadID)
	}
	last, ok := o.shouldTriage(thread)
	if !ok {
		// Already triaged or gated off; nothing left to retry.
		return nil
	}
	if err := o.applyTriage(ctx, thread, last); err != nil {
		return err
	}
	thread.UpdatedAt = time.Now().UTC()
	if err := o.threads.Upsert(thread); err != nil {
		return fmt.Errorf("store thread %s: %w", threadID, err)
	}
	return nil
}

func (o *Orchestrator) shouldTriage(thread *threaddomain.Thread) (*threaddomain.Message, bool) {
	if o.classifier == nil || !o.enabled {
		return nil, false
	}
	settings, err := o.settings.Get(thread.TenantID)
	if err != nil {
		log.Printf("[Triage] failed to load settings for tenant %s: %v", thread.TenantID, err)
		return nil, false
	}
	if !settings.AITriageEnabled {
		return nil, false
	}
	last := thread.LastMessage()
	if last == nil {
		return nil, false
	}
	// Agents' own outbound replies are never classified.
	if mb, ok := o.registry.Get(thread.Mailbox); ok {
		if last.From != "" && strings.Contains(strings.ToLower(last.From), strings.ToLower(mb.Address)) {
			return nil, false
		}
	}
	if thread.HasNote(threaddomain.TriageNoteID(last.ID)) {
		return nil, false
	}
	return last, true
}

func (o *Orchestrator) applyTriage(ctx context.Context, thread *threaddomain.Thread, last *threaddomain.Message) error {
	body := last.BodyText
	if body == "" {
		body = last.Snippet
	}
	result, err := o.classifier.ClassifyEmail(ctx, ai.TriageInput{
		TenantID: thread.TenantID,
		Subject:  last.Subject,
		Body:     body,
		From:     last.From,
	})
	if err != nil {
		return err
	}

	queue := o.routeQueue(thread.TenantID, result)

	thread.Priority = priorityFromUrgency(result.Urgency)
	thread.Tags = appendTag(thread.Tags, "triage:"+strings.ToLower(result.Category))
	if queue != "" {
		thread.Tags = appendTag(thread.Tags, "queue:"+queue)
	}
	note := threaddomain.InternalNote{
		ID:       threaddomain.TriageNoteID(last.ID),
		AuthorID: threaddomain.SystemActorID,
		Body: fmt.Sprintf("AI triage: category=%s urgency=%s sentiment=%s queue=%s confidence=%.2f",
			result.Category, result.Urgency, result.Sentiment, queue, result.Confidence),
		Date: time.Now().UTC(),
	}
	thread.InternalNotes = append([]threaddomain.InternalNote{note}, thread.InternalNotes...)

	o.appendAudit(auditdomain.Event{
		ID:         uuid.NewString(),
		TenantID:   thread.TenantID,
		ActorID:    threaddomain.SystemActorID,
		Action:     "ai_triage",
		TargetType: "thread",
		TargetID:   thread.ID,
		Timestamp:  time.Now().UTC(),
		Metadata: map[string]string{
			"messageId": last.ID,
			"category":  result.Category,
			"urgency":   result.Urgency,
			"queue":     queue,
		},
	})
	return nil
}

// routeQueue resolves the final queue: the tenant's routing rule for the
// category wins over the classifier's suggestion.
func (o *Orchestrator) routeQueue(tenantID string, result *ai.TriageResult) string {
	rules, err := o.routing.List(tenantID)
	if err != nil {
		log.Printf("[Triage] failed to load routing rules for tenant %s: %v", tenantID, err)
		return result.SuggestedQueue
	}
	category := strings.ToLower(result.Category)
	for _, rule := range rules {
		if strings.ToLower(string(rule.Category)) == category {
			return rule.Queue
		}
	}
	return result.SuggestedQueue
}

func (o *Orchestrator) recordFailure(thread *threaddomain.Thread, last *threaddomain.Message, classifyErr error) {
	o.appendAudit(auditdomain.Event{
		ID:         uuid.NewString(),
		TenantID:   thread.TenantID,
		ActorID:    threaddomain.SystemActorID,
		Action:     "ai_triage_failed",
		TargetType: "thread",
		TargetID:   thread.ID,
		Timestamp:  time.Now().UTC(),
		Metadata: map[string]string{
			"messageId": last.ID,
			"error":     classifyErr.Error(),
		},
	})

	now := time.Now().UTC()
	job := &jobdomain.Job{
		ID:       uuid.NewString(),
		TenantID: thread.TenantID,
		Type:     jobdomain.TypeAIRetry,
		Payload: map[string]string{
			jobdomain.PayloadThreadID: thread.ID,
			jobdomain.PayloadAction:   jobdomain.ActionTriage,
		},
		Status:    jobdomain.StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.jobs.Enqueue(job); err != nil {
		log.Printf("[Triage] failed to enqueue retry for thread %s: %v", thread.ID, err)
	}
}

func (o *Orchestrator) appendAudit(event auditdomain.Event) {
	if err := o.audit.Append(event); err != nil {
		log.Printf("[Triage] failed to append audit event %s: %v", event.Action, err)
	}
}

func priorityFromUrgency(urgency string) threaddomain.Priority {
	switch strings.ToUpper(urgency) {
	case "P0":
		return threaddomain.PriorityUrgent
	case "P1":
		return threaddomain.PriorityHigh
	case "P3":
		return threaddomain.PriorityLow
	default:
		return threaddomain.PriorityNormal
	}
}

func appendTag(tags []string, tag string) []string {
	for _, existing := range tags {
		if existing == tag {
			return tags
		}
	}
	return append(tags, tag)
}
