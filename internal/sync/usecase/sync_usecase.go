package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"deskmail-backend/internal/mailbox"
	threaddomain "deskmail-backend/internal/thread/domain"
	"deskmail-backend/internal/thread/repository"
)

const (
	recentWindow = 20
	fullPageSize = 100
)

// Triager applies automated triage to a thread in place and reports whether
// it mutated the thread. Implementations decide their own gating; the engine
// only persists the result.
type Triager interface {
	MaybeTriage(ctx context.Context, thread *threaddomain.Thread) bool
}

// SyncEngine reconciles provider mailbox state into the thread store. All
// entry points degrade to serving stored threads when the provider is not
// configured, so the console stays usable without credentials.
type SyncEngine struct {
	threads   repository.ThreadRepository
	syncState repository.SyncStateRepository
	registry  *mailbox.Registry
	provider  threaddomain.MailProvider
	triager   Triager
	pushTopic string
}

func NewSyncEngine(
	threads repository.ThreadRepository,
	syncState repository.SyncStateRepository,
	registry *mailbox.Registry,
	provider threaddomain.MailProvider,
	triager Triager,
	pushTopic string,
) *SyncEngine {
	return &SyncEngine{
		threads:   threads,
		syncState: syncState,
		registry:  registry,
		provider:  provider,
		triager:   triager,
		pushTopic: pushTopic,
	}
}

// SyncRecent reconciles the threads behind the mailbox's most recent inbox
// messages and returns the mailbox's stored threads.
func (e *SyncEngine) SyncRecent(ctx context.Context, tenantID, mailboxID string) ([]*threaddomain.Thread, error) {
	mb, err := e.resolveMailbox(tenantID, mailboxID)
	if err != nil {
		return nil, err
	}
	if !e.provider.Configured() {
		log.Printf("[Sync] provider not configured, serving stored threads for mailbox %s", mb.ID)
		return e.threads.ListByMailbox(mb.TenantID, mb.ID)
	}

	refs, err := e.provider.ListRecentMessages(ctx, mb.Address, recentWindow)
	if err != nil {
		return nil, fmt.Errorf("list recent messages for %s: %w", mb.ID, err)
	}
	if err := e.reconcileThreads(ctx, mb, dedupThreadIDs(refs)); err != nil {
		return nil, err
	}
	return e.threads.ListByMailbox(mb.TenantID, mb.ID)
}

// SyncFull walks the entire inbox page by page and reconciles every thread it
// finds. It does not touch the cursor; callers that ran it as a fallback
// persist the invalidated cursor themselves.
func (e *SyncEngine) SyncFull(ctx context.Context, tenantID, mailboxID string) ([]*threaddomain.Thread, error) {
	mb, err := e.resolveMailbox(tenantID, mailboxID)
	if err != nil {
		return nil, err
	}
	if !e.provider.Configured() {
		log.Printf("[Sync] provider not configured, serving stored threads for mailbox %s", mb.ID)
		return e.threads.ListByMailbox(mb.TenantID, mb.ID)
	}

	seen := make(map[string]bool)
	var threadIDs []string
	pageToken := ""
	for {
		page, err := e.provider.ListMessagesPage(ctx, mb.Address, fullPageSize, pageToken)
		if err != nil {
			return nil, fmt.Errorf("list messages page for %s: %w", mb.ID, err)
		}
		for _, ref := range page.Refs {
			if ref.ThreadID == "" || seen[ref.ThreadID] {
				continue
			}
			seen[ref.ThreadID] = true
			threadIDs = append(threadIDs, ref.ThreadID)
		}
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	log.Printf("[Sync] full sync for mailbox %s covering %d threads", mb.ID, len(threadIDs))
	if err := e.reconcileThreads(ctx, mb, threadIDs); err != nil {
		return nil, err
	}
	return e.threads.ListByMailbox(mb.TenantID, mb.ID)
}

// SyncIncremental replays provider history from the stored cursor. With no
// baseline it falls back to a recent sync; with a cursor the provider refuses
// it falls back to a full backfill and resets the cursor. The cursor only
// advances after every touched thread reconciled successfully.
func (e *SyncEngine) SyncIncremental(ctx context.Context, tenantID, mailboxID string) ([]*threaddomain.Thread, error) {
	mb, err := e.resolveMailbox(tenantID, mailboxID)
	if err != nil {
		return nil, err
	}
	return e.syncIncremental(ctx, mb, "")
}

func (e *SyncEngine) syncIncremental(ctx context.Context, mb mailbox.Mailbox, hintHistoryID string) ([]*threaddomain.Thread, error) {
	if !e.provider.Configured() {
		log.Printf("[Sync] provider not configured, serving stored threads for mailbox %s", mb.ID)
		return e.threads.ListByMailbox(mb.TenantID, mb.ID)
	}

	cursor, err := e.syncState.GetCursor(mb.TenantID, mb.ID)
	if err != nil {
		return nil, fmt.Errorf("load cursor for %s: %w", mb.ID, err)
	}
	if !cursor.Established() {
		log.Printf("[Sync] no cursor for mailbox %s, falling back to recent sync", mb.ID)
		threads, err := e.SyncRecent(ctx, mb.TenantID, mb.ID)
		if err != nil {
			return nil, err
		}
		if hintHistoryID != "" {
			if err := e.syncState.SaveCursor(mb.TenantID, mb.ID, threaddomain.NewCursor(hintHistoryID)); err != nil {
				return nil, fmt.Errorf("save cursor for %s: %w", mb.ID, err)
			}
		}
		return threads, nil
	}

	seen := make(map[string]bool)
	var threadIDs []string
	latest := cursor.HistoryID
	pageToken := ""
	for {
		page, err := e.provider.ListHistory(ctx, mb.Address, cursor.HistoryID, pageToken)
		if err != nil {
			if errors.Is(err, threaddomain.ErrInvalidHistoryID) {
				log.Printf("[Sync] cursor %s rejected for mailbox %s, falling back to full sync", cursor.HistoryID, mb.ID)
				threads, fullErr := e.SyncFull(ctx, mb.TenantID, mb.ID)
				if fullErr != nil {
					return nil, fullErr
				}
				if saveErr := e.syncState.SaveCursor(mb.TenantID, mb.ID, cursor.Invalidate()); saveErr != nil {
					return nil, fmt.Errorf("reset cursor for %s: %w", mb.ID, saveErr)
				}
				return threads, nil
			}
			return nil, fmt.Errorf("list history for %s: %w", mb.ID, err)
		}
		for _, id := range page.ThreadIDs {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			threadIDs = append(threadIDs, id)
		}
		latest = maxHistoryID(latest, page.HistoryID)
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}
	latest = maxHistoryID(latest, hintHistoryID)

	if err := e.reconcileThreads(ctx, mb, threadIDs); err != nil {
		return nil, err
	}
	if latest != cursor.HistoryID {
		if err := e.syncState.SaveCursor(mb.TenantID, mb.ID, threaddomain.NewCursor(latest)); err != nil {
			return nil, fmt.Errorf("save cursor for %s: %w", mb.ID, err)
		}
	}
	return e.threads.ListByMailbox(mb.TenantID, mb.ID)
}

// HandleNotification routes a provider push notification to the mailbox it
// concerns. Unknown addresses are ignored so stale subscriptions cannot fail
// the webhook.
func (e *SyncEngine) HandleNotification(ctx context.Context, emailAddress, historyID string) error {
	mb, ok := e.registry.ResolveFromAddress(emailAddress)
	if !ok {
		log.Printf("[Sync] ignoring notification for unknown address %s", emailAddress)
		return nil
	}
	_, err := e.syncIncremental(ctx, mb, historyID)
	return err
}

// Watch registers the mailbox for provider push notifications and seeds the
// incremental cursor from the watch baseline.
func (e *SyncEngine) Watch(ctx context.Context, tenantID, mailboxID string) (string, error) {
	mb, err := e.resolveMailbox(tenantID, mailboxID)
	if err != nil {
		return "", err
	}
	if !e.provider.Configured() {
		return "", errors.New("mail provider is not configured")
	}
	historyID, err := e.provider.Watch(ctx, mb.Address, e.pushTopic)
	if err != nil {
		return "", fmt.Errorf("watch mailbox %s: %w", mb.ID, err)
	}
	if err := e.syncState.SaveCursor(mb.TenantID, mb.ID, threaddomain.NewCursor(historyID)); err != nil {
		return "", fmt.Errorf("save cursor for %s: %w", mb.ID, err)
	}
	log.Printf("[Sync] watch registered for mailbox %s at history %s", mb.ID, historyID)
	return historyID, nil
}

func (e *SyncEngine) resolveMailbox(tenantID, mailboxID string) (mailbox.Mailbox, error) {
	mb, ok := e.registry.Get(mailboxID)
	if !ok {
		return mailbox.Mailbox{}, fmt.Errorf("unknown mailbox %q", mailboxID)
	}
	if mb.TenantID != tenantID {
		return mailbox.Mailbox{}, fmt.Errorf("mailbox %q does not belong to tenant %q", mailboxID, tenantID)
	}
	return mb, nil
}

func (e *SyncEngine) reconcileThreads(ctx context.Context, mb mailbox.Mailbox, threadIDs []string) error {
	for _, threadID := range threadIDs {
		if err := e.reconcileThread(ctx, mb, threadID); err != nil {
			return err
		}
	}
	return nil
}

// reconcileThread fetches one provider thread, merges it over the stored
// aggregate and persists the result. Agent-owned state (status, assignment,
// priority, tags, notes) survives the merge; provider-owned state (subject,
// snippet, participants, messages) is replaced. An unchanged thread is not
// written at all.
func (e *SyncEngine) reconcileThread(ctx context.Context, mb mailbox.Mailbox, threadID string) error {
	raw, err := e.provider.GetThread(ctx, mb.Address, threadID)
	if err != nil {
		return fmt.Errorf("fetch thread %s: %w", threadID, err)
	}
	incoming := normalizeThread(raw, mb.ID, mb.TenantID)

	stored, err := e.threads.Get(mb.TenantID, threadID)
	if err != nil {
		return fmt.Errorf("load thread %s: %w", threadID, err)
	}

	thread := incoming
	changed := true
	if stored != nil {
		changed = providerStateChanged(stored, incoming)
		thread = stored
		thread.Subject = incoming.Subject
		thread.Snippet = incoming.Snippet
		thread.Participants = incoming.Participants
		thread.Messages = incoming.Messages
	}

	triaged := false
	if e.triager != nil {
		triaged = e.triager.MaybeTriage(ctx, thread)
	}

	if !changed && !triaged {
		return nil
	}
	thread.UpdatedAt = time.Now().UTC()
	if err := e.threads.Upsert(thread); err != nil {
		return fmt.Errorf("store thread %s: %w", threadID, err)
	}
	return nil
}

func providerStateChanged(stored, incoming *threaddomain.Thread) bool {
	if stored.Subject != incoming.Subject || stored.Snippet != incoming.Snippet {
		return true
	}
	if len(stored.Messages) != len(incoming.Messages) {
		return true
	}
	for i := range stored.Messages {
		if stored.Messages[i].ID != incoming.Messages[i].ID {
			return true
		}
	}
	if len(stored.Participants) != len(incoming.Participants) {
		return true
	}
	for i := range stored.Participants {
		if stored.Participants[i] != incoming.Participants[i] {
			return true
		}
	}
	return false
}

func dedupThreadIDs(refs []threaddomain.MessageRef) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, ref := range refs {
		if ref.ThreadID == "" || seen[ref.ThreadID] {
			continue
		}
		seen[ref.ThreadID] = true
		ids = append(ids, ref.ThreadID)
	}
	return ids
}

// maxHistoryID keeps the numerically larger of two history cursors. Unparsable
// candidates never win.
func maxHistoryID(current, candidate string) string {
	if candidate == "" {
		return current
	}
	candidateNum, err := strconv.ParseUint(candidate, 10, 64)
	if err != nil {
		return current
	}
	currentNum, err := strconv.ParseUint(current, 10, 64)
	if err != nil {
		return candidate
	}
	if candidateNum > currentNum {
		return candidate
	}
	return current
}
