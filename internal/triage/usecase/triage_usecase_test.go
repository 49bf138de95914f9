package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	auditdomain "deskmail-backend/internal/audit/domain"
	jobdomain "deskmail-backend/internal/job/domain"
	"deskmail-backend/internal/mailbox"
	tenantdomain "deskmail-backend/internal/tenant/domain"
	threaddomain "deskmail-backend/internal/thread/domain"
	"deskmail-backend/pkg/ai"
	"deskmail-backend/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClassifier struct {
	result *ai.TriageResult
	err    error
	calls  int
}

func (c *fakeClassifier) ClassifyEmail(ctx context.Context, input ai.TriageInput) (*ai.TriageResult, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.result, nil
}

type fakeThreadStore struct {
	threads map[string]*threaddomain.Thread
	upserts int
}

func newFakeThreadStore() *fakeThreadStore {
	return &fakeThreadStore{threads: make(map[string]*threaddomain.Thread)}
}

func (s *fakeThreadStore) Get(tenantID, threadID string) (*threaddomain.Thread, error) {
	thread, ok := s.threads[tenantID+"/"+threadID]
	if !ok {
		return nil, nil
	}
	copied := *thread
	return &copied, nil
}

func (s *fakeThreadStore) Upsert(thread *threaddomain.Thread) error {
	s.upserts++
	copied := *thread
	s.threads[thread.TenantID+"/"+thread.ID] = &copied
	return nil
}

func (s *fakeThreadStore) ListByTenant(tenantID string) ([]*threaddomain.Thread, error) {
	return nil, nil
}

func (s *fakeThreadStore) ListByMailbox(tenantID, mailbox string) ([]*threaddomain.Thread, error) {
	return nil, nil
}

func (s *fakeThreadStore) ListSummaries(tenantID string) ([]threaddomain.InboxSummary, error) {
	return nil, nil
}

func (s *fakeThreadStore) Workload(tenantID string) (map[string]int, error) {
	return nil, nil
}

type fakeSettingsRepo struct {
	settings map[string]tenantdomain.TenantSettings
}

func (r *fakeSettingsRepo) Get(tenantID string) (tenantdomain.TenantSettings, error) {
	if settings, ok := r.settings[tenantID]; ok {
		return settings, nil
	}
	return tenantdomain.DefaultSettings(tenantID), nil
}

func (r *fakeSettingsRepo) Upsert(settings tenantdomain.TenantSettings) error { return nil }

type fakeRoutingRepo struct {
	rules []tenantdomain.RoutingRule
}

func (r *fakeRoutingRepo) List(tenantID string) ([]tenantdomain.RoutingRule, error) {
	return r.rules, nil
}

func (r *fakeRoutingRepo) Replace(tenantID string, rules []tenantdomain.RoutingRule) error {
	r.rules = rules
	return nil
}

type fakeAuditRepo struct {
	events []auditdomain.Event
}

func (r *fakeAuditRepo) Append(event auditdomain.Event) error {
	r.events = append(r.events, event)
	return nil
}

func (r *fakeAuditRepo) List(tenantID string, limit int) ([]auditdomain.Event, error) {
	return r.events, nil
}

type fakeJobRepo struct {
	jobs []*jobdomain.Job
}

func (r *fakeJobRepo) Enqueue(job *jobdomain.Job) error {
	r.jobs = append(r.jobs, job)
	return nil
}

func (r *fakeJobRepo) ListQueued(tenantID string, limit int) ([]*jobdomain.Job, error) {
	return r.jobs, nil
}

func (r *fakeJobRepo) List(tenantID string) ([]*jobdomain.Job, error) { return r.jobs, nil }

func (r *fakeJobRepo) Update(job *jobdomain.Job) error { return nil }

func triageThread() *threaddomain.Thread {
	return &threaddomain.Thread{
		ID:       "t1",
		TenantID: "dream-x",
		Mailbox:  "board",
		Priority: threaddomain.PriorityNormal,
		Messages: []threaddomain.Message{
			{
				ID:       "m1",
				ThreadID: "t1",
				From:     "ana@example.com",
				Subject:  "Refund please",
				BodyText: "I was double charged last month.",
				Date:     time.Now().UTC(),
			},
		},
	}
}

type triageFixture struct {
	classifier *fakeClassifier
	threads    *fakeThreadStore
	registry   *mailbox.Registry
	settings   *fakeSettingsRepo
	routing    *fakeRoutingRepo
	audit      *fakeAuditRepo
	jobs       *fakeJobRepo
}

func newTriageFixture() *triageFixture {
	return &triageFixture{
		classifier: &fakeClassifier{result: &ai.TriageResult{
			Category:       "billing",
			Urgency:        "P1",
			Sentiment:      "angry",
			SuggestedQueue: "Billing",
			Confidence:     0.91,
		}},
		threads: newFakeThreadStore(),
		registry: mailbox.NewRegistry([]config.MailboxSpec{
			{ID: "board", Address: "board@dream-x.app", TenantID: "dream-x"},
		}),
		settings: &fakeSettingsRepo{settings: map[string]tenantdomain.TenantSettings{
			"dream-x": {TenantID: "dream-x", AITriageEnabled: true, RetentionDays: 90},
		}},
		routing: &fakeRoutingRepo{},
		audit:   &fakeAuditRepo{},
		jobs:    &fakeJobRepo{},
	}
}

func (f *triageFixture) orchestrator(enabled bool) *Orchestrator {
	return NewOrchestrator(f.classifier, f.threads, f.registry, f.settings, f.routing, f.audit, f.jobs, enabled)
}

func TestMaybeTriageAppliesClassification(t *testing.T) {
	f := newTriageFixture()
	thread := triageThread()

	mutated := f.orchestrator(true).MaybeTriage(context.Background(), thread)
	require.True(t, mutated)

	assert.Equal(t, threaddomain.PriorityHigh, thread.Priority)
	assert.Contains(t, thread.Tags, "triage:billing")
	assert.Contains(t, thread.Tags, "queue:Billing")
	require.Len(t, thread.InternalNotes, 1)
	note := thread.InternalNotes[0]
	assert.Equal(t, "note-ai-m1", note.ID)
	assert.Equal(t, threaddomain.SystemActorID, note.AuthorID)
	assert.Contains(t, note.Body, "category=billing")
	assert.Contains(t, note.Body, "urgency=P1")

	require.Len(t, f.audit.events, 1)
	assert.Equal(t, "ai_triage", f.audit.events[0].Action)
	assert.Equal(t, "m1", f.audit.events[0].Metadata["messageId"])
}

func TestMaybeTriageRoutingRuleOverridesSuggestedQueue(t *testing.T) {
	f := newTriageFixture()
	f.routing.rules = []tenantdomain.RoutingRule{
		{TenantID: "dream-x", Category: tenantdomain.CategoryBilling, Queue: "Finance"},
	}
	thread := triageThread()

	require.True(t, f.orchestrator(true).MaybeTriage(context.Background(), thread))
	assert.Contains(t, thread.Tags, "queue:Finance")
	assert.NotContains(t, thread.Tags, "queue:Billing")
	assert.Equal(t, "Finance", f.audit.events[0].Metadata["queue"])
}

func TestMaybeTriageIdempotentPerMessage(t *testing.T) {
	f := newTriageFixture()
	thread := triageThread()
	thread.InternalNotes = []threaddomain.InternalNote{
		{ID: threaddomain.TriageNoteID("m1"), AuthorID: threaddomain.SystemActorID, Body: "already done"},
	}

	mutated := f.orchestrator(true).MaybeTriage(context.Background(), thread)
	assert.False(t, mutated)
	assert.Zero(t, f.classifier.calls)
	require.Len(t, thread.InternalNotes, 1)
}

func TestMaybeTriageGatedOff(t *testing.T) {
	t.Run("globally disabled", func(t *testing.T) {
		f := newTriageFixture()
		assert.False(t, f.orchestrator(false).MaybeTriage(context.Background(), triageThread()))
		assert.Zero(t, f.classifier.calls)
	})

	t.Run("tenant setting disabled", func(t *testing.T) {
		f := newTriageFixture()
		f.settings.settings["dream-x"] = tenantdomain.TenantSettings{TenantID: "dream-x"}
		assert.False(t, f.orchestrator(true).MaybeTriage(context.Background(), triageThread()))
		assert.Zero(t, f.classifier.calls)
	})

	t.Run("no classifier", func(t *testing.T) {
		f := newTriageFixture()
		o := NewOrchestrator(nil, f.threads, f.registry, f.settings, f.routing, f.audit, f.jobs, true)
		assert.False(t, o.MaybeTriage(context.Background(), triageThread()))
	})

	t.Run("empty thread", func(t *testing.T) {
		f := newTriageFixture()
		thread := triageThread()
		thread.Messages = nil
		assert.False(t, f.orchestrator(true).MaybeTriage(context.Background(), thread))
		assert.Zero(t, f.classifier.calls)
	})

	t.Run("latest message is our own reply", func(t *testing.T) {
		f := newTriageFixture()
		thread := triageThread()
		thread.Messages = append(thread.Messages, threaddomain.Message{
			ID:       "m2",
			ThreadID: "t1",
			From:     "Support <Board@dream-x.app>",
			Subject:  "Re: Refund please",
			BodyText: "We refunded the duplicate charge.",
			Date:     time.Now().UTC(),
		})
		assert.False(t, f.orchestrator(true).MaybeTriage(context.Background(), thread))
		assert.Zero(t, f.classifier.calls)
		assert.Empty(t, thread.InternalNotes)
	})
}

func TestMaybeTriageFailureRecordsAuditAndRetryJob(t *testing.T) {
	f := newTriageFixture()
	f.classifier.err = errors.New("model overloaded")
	thread := triageThread()

	mutated := f.orchestrator(true).MaybeTriage(context.Background(), thread)
	assert.False(t, mutated)
	assert.Empty(t, thread.InternalNotes)

	require.Len(t, f.audit.events, 1)
	assert.Equal(t, "ai_triage_failed", f.audit.events[0].Action)
	assert.Equal(t, "model overloaded", f.audit.events[0].Metadata["error"])

	require.Len(t, f.jobs.jobs, 1)
	job := f.jobs.jobs[0]
	assert.Equal(t, jobdomain.TypeAIRetry, job.Type)
	assert.Equal(t, jobdomain.StatusQueued, job.Status)
	assert.Equal(t, "t1", job.Payload[jobdomain.PayloadThreadID])
	assert.Equal(t, jobdomain.ActionTriage, job.Payload[jobdomain.PayloadAction])
}

func TestRetryTriagePersistsResult(t *testing.T) {
	f := newTriageFixture()
	require.NoError(t, f.threads.Upsert(triageThread()))
	f.threads.upserts = 0

	err := f.orchestrator(true).RetryTriage(context.Background(), "dream-x", "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, f.threads.upserts)

	stored, err := f.threads.Get("dream-x", "t1")
	require.NoError(t, err)
	require.Len(t, stored.InternalNotes, 1)
	assert.Equal(t, "note-ai-m1", stored.InternalNotes[0].ID)
	assert.False(t, stored.UpdatedAt.IsZero())
}

func TestRetryTriageAlreadyTriagedIsNoop(t *testing.T) {
	f := newTriageFixture()
	thread := triageThread()
	thread.InternalNotes = []threaddomain.InternalNote{
		{ID: threaddomain.TriageNoteID("m1"), AuthorID: threaddomain.SystemActorID},
	}
	require.NoError(t, f.threads.Upsert(thread))
	f.threads.upserts = 0

	require.NoError(t, f.orchestrator(true).RetryTriage(context.Background(), "dream-x", "t1"))
	assert.Zero(t, f.classifier.calls)
	assert.Zero(t, f.threads.upserts)
}

func TestRetryTriageMissingThread(t *testing.T) {
	f := newTriageFixture()
	err := f.orchestrator(true).RetryTriage(context.Background(), "dream-x", "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRetryTriageSurfacesClassifierError(t *testing.T) {
	f := newTriageFixture()
	f.classifier.err = errors.New("model overloaded")
	require.NoError(t, f.threads.Upsert(triageThread()))

	err := f.orchestrator(true).RetryTriage(context.Background(), "dream-x", "t1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestPriorityFromUrgency(t *testing.T) {
	assert.Equal(t, threaddomain.PriorityUrgent, priorityFromUrgency("P0"))
	assert.Equal(t, threaddomain.PriorityHigh, priorityFromUrgency("p1"))
	assert.Equal(t, threaddomain.PriorityNormal, priorityFromUrgency("P2"))
	assert.Equal(t, threaddomain.PriorityLow, priorityFromUrgency("P3"))
	assert.Equal(t, threaddomain.PriorityNormal, priorityFromUrgency("unknown"))
}
