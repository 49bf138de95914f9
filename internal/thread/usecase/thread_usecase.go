package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	auditdomain "deskmail-backend/internal/audit/domain"
	auditrepo "deskmail-backend/internal/audit/repository"
	"deskmail-backend/internal/mailbox"
	threaddomain "deskmail-backend/internal/thread/domain"
	"deskmail-backend/internal/thread/repository"

	"github.com/google/uuid"
)

// UpdateInput carries the agent-editable thread fields. Nil pointers leave
// the field untouched.
type UpdateInput struct {
	Status     *threaddomain.ThreadStatus
	AssignedTo *string
	Priority   *threaddomain.Priority
	Tags       *[]string
	Note       *string
}

type ThreadUsecase struct {
	threads  repository.ThreadRepository
	registry *mailbox.Registry
	provider threaddomain.MailProvider
	audit    auditrepo.EventRepository
}

func NewThreadUsecase(
	threads repository.ThreadRepository,
	registry *mailbox.Registry,
	provider threaddomain.MailProvider,
	audit auditrepo.EventRepository,
) *ThreadUsecase {
	return &ThreadUsecase{threads: threads, registry: registry, provider: provider, audit: audit}
}

func (u *ThreadUsecase) ListSummaries(tenantID string) ([]threaddomain.InboxSummary, error) {
	return u.threads.ListSummaries(tenantID)
}

// Get returns nil when the thread does not exist in the tenant.
func (u *ThreadUsecase) Get(tenantID, threadID string) (*threaddomain.Thread, error) {
	return u.threads.Get(tenantID, threadID)
}

func (u *ThreadUsecase) Workload(tenantID string) (map[string]int, error) {
	return u.threads.Workload(tenantID)
}

// Update applies agent edits to a thread and records them in the audit log.
func (u *ThreadUsecase) Update(tenantID, agentID, threadID string, input UpdateInput) (*threaddomain.Thread, error) {
	thread, err := u.threads.Get(tenantID, threadID)
	if err != nil {
		return nil, fmt.Errorf("load thread %s: %w", threadID, err)
	}
	if thread == nil {
		return nil, nil
	}

	changes := map[string]string{}
	if input.Status != nil {
		if !validStatus(*input.Status) {
			return nil, fmt.Errorf("invalid status %q", *input.Status)
		}
		thread.Status = *input.Status
		changes["status"] = string(*input.Status)
	}
	if input.AssignedTo != nil {
		thread.AssignedTo = *input.AssignedTo
		changes["assignedTo"] = *input.AssignedTo
	}
	if input.Priority != nil {
		if !validPriority(*input.Priority) {
			return nil, fmt.Errorf("invalid priority %q", *input.Priority)
		}
		thread.Priority = *input.Priority
		changes["priority"] = string(*input.Priority)
	}
	if input.Tags != nil {
		thread.Tags = *input.Tags
		changes["tags"] = strings.Join(*input.Tags, ",")
	}
	if input.Note != nil && strings.TrimSpace(*input.Note) != "" {
		thread.InternalNotes = append(thread.InternalNotes, threaddomain.InternalNote{
			ID:       "note-" + uuid.NewString(),
			AuthorID: agentID,
			Body:     *input.Note,
			Date:     time.Now().UTC(),
		})
		changes["note"] = "added"
	}
	if len(changes) == 0 {
		return thread, nil
	}

	thread.UpdatedAt = time.Now().UTC()
	if err := u.threads.Upsert(thread); err != nil {
		return nil, fmt.Errorf("store thread %s: %w", threadID, err)
	}
	u.appendAudit(auditdomain.Event{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		ActorID:    agentID,
		Action:     "thread_updated",
		TargetType: "thread",
		TargetID:   threadID,
		Timestamp:  time.Now().UTC(),
		Metadata:   changes,
	})
	return thread, nil
}

// Reply sends an agent reply on the thread through its mailbox account and
// appends the sent message locally. The thread moves to pending.
func (u *ThreadUsecase) Reply(ctx context.Context, tenantID, agentID, threadID, body string) (*threaddomain.Thread, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("reply body is empty")
	}
	thread, err := u.threads.Get(tenantID, threadID)
	if err != nil {
		return nil, fmt.Errorf("load thread %s: %w", threadID, err)
	}
	if thread == nil {
		return nil, nil
	}
	last := thread.LastMessage()
	if last == nil {
		return nil, fmt.Errorf("thread %s has no messages to reply to", threadID)
	}
	mb, ok := u.registry.Get(thread.Mailbox)
	if !ok {
		return nil, fmt.Errorf("unknown mailbox %q", thread.Mailbox)
	}
	if !u.provider.Configured() {
		return nil, fmt.Errorf("mail provider is not configured")
	}

	recipient := replyRecipient(thread, mb.Address)
	if recipient == "" {
		return nil, fmt.Errorf("thread %s has no external participant", threadID)
	}
	subject := last.Subject
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}

	messageID, err := u.provider.Send(ctx, mb.Address, threaddomain.OutboundMail{
		From:       mb.Address,
		To:         recipient,
		Subject:    subject,
		BodyText:   body,
		ThreadID:   thread.ID,
		InReplyTo:  last.RFCID,
		References: last.RFCID,
	})
	if err != nil {
		return nil, fmt.Errorf("send reply on thread %s: %w", threadID, err)
	}

	now := time.Now().UTC()
	thread.Messages = append(thread.Messages, threaddomain.Message{
		ID:          messageID,
		ThreadID:    thread.ID,
		From:        mb.Address,
		To:          []string{recipient},
		Subject:     subject,
		Date:        now,
		Snippet:     snippetOf(body),
		BodyText:    body,
		Attachments: []threaddomain.Attachment{},
	})
	thread.Snippet = snippetOf(body)
	thread.Status = threaddomain.StatusPending
	thread.UpdatedAt = now
	if err := u.threads.Upsert(thread); err != nil {
		return nil, fmt.Errorf("store thread %s: %w", threadID, err)
	}

	u.appendAudit(auditdomain.Event{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		ActorID:    agentID,
		Action:     "thread_replied",
		TargetType: "thread",
		TargetID:   threadID,
		Timestamp:  now,
		Metadata:   map[string]string{"messageId": messageID, "to": recipient},
	})
	return thread, nil
}

// replyRecipient picks the sender of the latest inbound message, falling back
// to the first participant that is not the mailbox itself.
func replyRecipient(thread *threaddomain.Thread, mailboxAddress string) string {
	lowerMailbox := strings.ToLower(mailboxAddress)
	for i := len(thread.Messages) - 1; i >= 0; i-- {
		from := thread.Messages[i].From
		if from != "" && !strings.Contains(strings.ToLower(from), lowerMailbox) {
			return from
		}
	}
	for _, p := range thread.Participants {
		if strings.ToLower(p) != lowerMailbox {
			return p
		}
	}
	return ""
}

func snippetOf(body string) string {
	flat := strings.Join(strings.Fields(body), " ")
	if len(flat) > 120 {
		return flat[:120]
	}
	return flat
}

func (u *ThreadUsecase) appendAudit(event auditdomain.Event) {
	if err := u.audit.Append(event); err != nil {
		log.Printf("[Thread] failed to append audit event %s: %v", event.Action, err)
	}
}

func validStatus(status threaddomain.ThreadStatus) bool {
	switch status {
	case threaddomain.StatusOpen, threaddomain.StatusPending, threaddomain.StatusClosed:
		return true
	}
	return false
}

func validPriority(priority threaddomain.Priority) bool {
	switch priority {
	case threaddomain.PriorityLow, threaddomain.PriorityNormal, threaddomain.PriorityHigh, threaddomain.PriorityUrgent:
		return true
	}
	return false
}
