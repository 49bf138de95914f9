package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	auditdomain "deskmail-backend/internal/audit/domain"
	"deskmail-backend/internal/mailbox"
	threaddomain "deskmail-backend/internal/thread/domain"
	"deskmail-backend/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeThreadRepo struct {
	threads map[string]*threaddomain.Thread
}

func newFakeThreadRepo() *fakeThreadRepo {
	return &fakeThreadRepo{threads: make(map[string]*threaddomain.Thread)}
}

func (r *fakeThreadRepo) Get(tenantID, threadID string) (*threaddomain.Thread, error) {
	thread, ok := r.threads[tenantID+"/"+threadID]
	if !ok {
		return nil, nil
	}
	copied := *thread
	return &copied, nil
}

func (r *fakeThreadRepo) Upsert(thread *threaddomain.Thread) error {
	copied := *thread
	r.threads[thread.TenantID+"/"+thread.ID] = &copied
	return nil
}

func (r *fakeThreadRepo) ListByTenant(tenantID string) ([]*threaddomain.Thread, error) {
	return nil, nil
}

func (r *fakeThreadRepo) ListByMailbox(tenantID, mailboxID string) ([]*threaddomain.Thread, error) {
	return nil, nil
}

func (r *fakeThreadRepo) ListSummaries(tenantID string) ([]threaddomain.InboxSummary, error) {
	var out []threaddomain.InboxSummary
	for _, thread := range r.threads {
		if thread.TenantID == tenantID {
			out = append(out, thread.Summary())
		}
	}
	return out, nil
}

func (r *fakeThreadRepo) Workload(tenantID string) (map[string]int, error) {
	counts := make(map[string]int)
	for _, thread := range r.threads {
		if thread.TenantID == tenantID && thread.Status != threaddomain.StatusClosed && thread.AssignedTo != "" {
			counts[thread.AssignedTo]++
		}
	}
	return counts, nil
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

type fakeSender struct {
	configured bool
	sendFn     func(ctx context.Context, address string, mail threaddomain.OutboundMail) (string, error)
}

func (p *fakeSender) Configured() bool { return p.configured }

func (p *fakeSender) ListRecentMessages(ctx context.Context, address string, max int64) ([]threaddomain.MessageRef, error) {
	return nil, errors.New("not implemented")
}

func (p *fakeSender) ListMessagesPage(ctx context.Context, address string, pageSize int64, pageToken string) (*threaddomain.MessagePage, error) {
	return nil, errors.New("not implemented")
}

func (p *fakeSender) GetThread(ctx context.Context, address, threadID string) (*threaddomain.RawThread, error) {
	return nil, errors.New("not implemented")
}

func (p *fakeSender) ListHistory(ctx context.Context, address, startHistoryID, pageToken string) (*threaddomain.HistoryPage, error) {
	return nil, errors.New("not implemented")
}

func (p *fakeSender) Send(ctx context.Context, address string, mail threaddomain.OutboundMail) (string, error) {
	if p.sendFn == nil {
		return "", errors.New("unexpected Send call")
	}
	return p.sendFn(ctx, address, mail)
}

func (p *fakeSender) Watch(ctx context.Context, address, topic string) (string, error) {
	return "", errors.New("not implemented")
}

func testRegistry() *mailbox.Registry {
	return mailbox.NewRegistry([]config.MailboxSpec{
		{ID: "board", Address: "board@dream-x.app", TenantID: "dream-x"},
	})
}

func storedThread() *threaddomain.Thread {
	return &threaddomain.Thread{
		ID:           "t1",
		TenantID:     "dream-x",
		Mailbox:      "board",
		Subject:      "Refund please",
		Status:       threaddomain.StatusOpen,
		Priority:     threaddomain.PriorityNormal,
		Participants: []string{"ana@example.com", "board@dream-x.app"},
		Messages: []threaddomain.Message{
			{
				ID:       "m1",
				ThreadID: "t1",
				RFCID:    "<orig@mail.example.com>",
				From:     "ana@example.com",
				To:       []string{"board@dream-x.app"},
				Subject:  "Refund please",
				Date:     time.Now().UTC().Add(-time.Hour),
			},
		},
	}
}

func strPtr(s string) *string { return &s }

func TestUpdateAppliesFieldsAndAudits(t *testing.T) {
	threads := newFakeThreadRepo()
	audit := &fakeAuditRepo{}
	require.NoError(t, threads.Upsert(storedThread()))
	u := NewThreadUsecase(threads, testRegistry(), &fakeSender{}, audit)

	status := threaddomain.StatusClosed
	priority := threaddomain.PriorityUrgent
	tags := []string{"vip", "billing"}
	updated, err := u.Update("dream-x", "agent-7", "t1", UpdateInput{
		Status:     &status,
		AssignedTo: strPtr("agent-9"),
		Priority:   &priority,
		Tags:       &tags,
		Note:       strPtr("escalating to finance"),
	})
	require.NoError(t, err)
	require.NotNil(t, updated)

	assert.Equal(t, threaddomain.StatusClosed, updated.Status)
	assert.Equal(t, "agent-9", updated.AssignedTo)
	assert.Equal(t, threaddomain.PriorityUrgent, updated.Priority)
	assert.Equal(t, []string{"vip", "billing"}, updated.Tags)
	require.Len(t, updated.InternalNotes, 1)
	assert.Equal(t, "agent-7", updated.InternalNotes[0].AuthorID)
	assert.False(t, updated.UpdatedAt.IsZero())

	require.Len(t, audit.events, 1)
	assert.Equal(t, "thread_updated", audit.events[0].Action)
	assert.Equal(t, "agent-7", audit.events[0].ActorID)
	assert.Equal(t, "closed", audit.events[0].Metadata["status"])
}

func TestUpdateRejectsInvalidValues(t *testing.T) {
	threads := newFakeThreadRepo()
	require.NoError(t, threads.Upsert(storedThread()))
	u := NewThreadUsecase(threads, testRegistry(), &fakeSender{}, &fakeAuditRepo{})

	badStatus := threaddomain.ThreadStatus("resolved")
	_, err := u.Update("dream-x", "agent-7", "t1", UpdateInput{Status: &badStatus})
	require.Error(t, err)

	badPriority := threaddomain.Priority("sky-high")
	_, err = u.Update("dream-x", "agent-7", "t1", UpdateInput{Priority: &badPriority})
	require.Error(t, err)
}

func TestUpdateMissingThreadReturnsNil(t *testing.T) {
	u := NewThreadUsecase(newFakeThreadRepo(), testRegistry(), &fakeSender{}, &fakeAuditRepo{})
	thread, err := u.Update("dream-x", "agent-7", "ghost", UpdateInput{})
	require.NoError(t, err)
	assert.Nil(t, thread)
}

func TestUpdateNoChangesSkipsWrite(t *testing.T) {
	threads := newFakeThreadRepo()
	audit := &fakeAuditRepo{}
	require.NoError(t, threads.Upsert(storedThread()))
	u := NewThreadUsecase(threads, testRegistry(), &fakeSender{}, audit)

	thread, err := u.Update("dream-x", "agent-7", "t1", UpdateInput{})
	require.NoError(t, err)
	require.NotNil(t, thread)
	assert.Empty(t, audit.events)
	assert.True(t, thread.UpdatedAt.IsZero())
}

func TestReplySendsAndAppendsMessage(t *testing.T) {
	threads := newFakeThreadRepo()
	audit := &fakeAuditRepo{}
	require.NoError(t, threads.Upsert(storedThread()))

	var sent threaddomain.OutboundMail
	provider := &fakeSender{
		configured: true,
		sendFn: func(ctx context.Context, address string, mail threaddomain.OutboundMail) (string, error) {
			assert.Equal(t, "board@dream-x.app", address)
			sent = mail
			return "m2", nil
		},
	}
	u := NewThreadUsecase(threads, testRegistry(), provider, audit)

	updated, err := u.Reply(context.Background(), "dream-x", "agent-7", "t1", "We refunded the duplicate charge.")
	require.NoError(t, err)
	require.NotNil(t, updated)

	assert.Equal(t, "ana@example.com", sent.To)
	assert.Equal(t, "Re: Refund please", sent.Subject)
	assert.Equal(t, "t1", sent.ThreadID)
	assert.Equal(t, "<orig@mail.example.com>", sent.InReplyTo)

	require.Len(t, updated.Messages, 2)
	assert.Equal(t, "m2", updated.Messages[1].ID)
	assert.Equal(t, "board@dream-x.app", updated.Messages[1].From)
	assert.Equal(t, threaddomain.StatusPending, updated.Status)

	require.Len(t, audit.events, 1)
	assert.Equal(t, "thread_replied", audit.events[0].Action)
	assert.Equal(t, "m2", audit.events[0].Metadata["messageId"])
}

func TestReplyKeepsExistingRePrefix(t *testing.T) {
	threads := newFakeThreadRepo()
	thread := storedThread()
	thread.Messages[0].Subject = "Re: Refund please"
	require.NoError(t, threads.Upsert(thread))

	provider := &fakeSender{
		configured: true,
		sendFn: func(ctx context.Context, address string, mail threaddomain.OutboundMail) (string, error) {
			assert.Equal(t, "Re: Refund please", mail.Subject)
			return "m2", nil
		},
	}
	u := NewThreadUsecase(threads, testRegistry(), provider, &fakeAuditRepo{})

	_, err := u.Reply(context.Background(), "dream-x", "agent-7", "t1", "done")
	require.NoError(t, err)
}

func TestReplyFailsWhenProviderOffline(t *testing.T) {
	threads := newFakeThreadRepo()
	require.NoError(t, threads.Upsert(storedThread()))
	u := NewThreadUsecase(threads, testRegistry(), &fakeSender{configured: false}, &fakeAuditRepo{})

	_, err := u.Reply(context.Background(), "dream-x", "agent-7", "t1", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestReplyRejectsEmptyBody(t *testing.T) {
	u := NewThreadUsecase(newFakeThreadRepo(), testRegistry(), &fakeSender{}, &fakeAuditRepo{})
	_, err := u.Reply(context.Background(), "dream-x", "agent-7", "t1", "   ")
	require.Error(t, err)
}

func TestWorkloadCountsOpenAssignments(t *testing.T) {
	threads := newFakeThreadRepo()
	first := storedThread()
	first.AssignedTo = "agent-7"
	require.NoError(t, threads.Upsert(first))

	second := storedThread()
	second.ID = "t2"
	second.AssignedTo = "agent-7"
	second.Status = threaddomain.StatusClosed
	require.NoError(t, threads.Upsert(second))

	u := NewThreadUsecase(threads, testRegistry(), &fakeSender{}, &fakeAuditRepo{})
	workload, err := u.Workload("dream-x")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"agent-7": 1}, workload)
}
