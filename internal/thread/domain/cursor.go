package domain

import "time"

// Cursor is the per-(tenant, mailbox) incremental sync watermark. The zero
// value means no baseline exists and incremental sync must fall back to a
// bounded recent sync. The provider invalidating a cursor transitions it back
// to the zero value via Invalidate.
type Cursor struct {
	HistoryID string
}

func NewCursor(historyID string) Cursor {
	return Cursor{HistoryID: historyID}
}

// Established reports whether an incremental baseline exists.
func (c Cursor) Established() bool {
	return c.HistoryID != ""
}

// Invalidate is the provider-rejected-cursor transition.
func (c Cursor) Invalidate() Cursor {
	return Cursor{}
}

// MailboxSyncState is the persisted cursor row, one per (tenant, mailbox).
type MailboxSyncState struct {
	TenantID  string    `json:"tenant_id" gorm:"primaryKey"`
	Mailbox   string    `json:"mailbox" gorm:"primaryKey"`
	HistoryID string    `json:"history_id"`
	UpdatedAt time.Time `json:"updated_at"`
}
