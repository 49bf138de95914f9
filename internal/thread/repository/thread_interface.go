package repository

import (
	threaddomain "deskmail-backend/internal/thread/domain"
)

// ThreadRepository is the per-tenant thread store. Upsert is full
// replace-by-id; callers read-modify-write the whole aggregate.
type ThreadRepository interface {
	// Get returns nil when the thread does not exist.
	Get(tenantID, threadID string) (*threaddomain.Thread, error)
	Upsert(thread *threaddomain.Thread) error
	ListByTenant(tenantID string) ([]*threaddomain.Thread, error)
	ListByMailbox(tenantID, mailbox string) ([]*threaddomain.Thread, error)
	// ListSummaries returns summaries ordered by updated_at descending.
	ListSummaries(tenantID string) ([]threaddomain.InboxSummary, error)
	// Workload counts non-closed threads per assignee.
	Workload(tenantID string) (map[string]int, error)
}

// SyncStateRepository persists the incremental sync cursor per
// (tenant, mailbox). A missing row maps to the zero Cursor.
type SyncStateRepository interface {
	GetCursor(tenantID, mailbox string) (threaddomain.Cursor, error)
	SaveCursor(tenantID, mailbox string, cursor threaddomain.Cursor) error
}
