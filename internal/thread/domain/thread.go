package domain

import "time"

type ThreadStatus string

const (
	StatusOpen    ThreadStatus = "open"
	StatusPending ThreadStatus = "pending"
	StatusClosed  ThreadStatus = "closed"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// SystemActorID marks notes and audit entries produced by automated triage.
const SystemActorID = "system-ai"

type Attachment struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	MimeType  string `json:"mime_type"`
	Size      int64  `json:"size"`
	MessageID string `json:"message_id"`
}

// Message is immutable once created. ID is the provider's message id and is
// globally unique within a mailbox; triage notes derive their idempotency key
// from it.
type Message struct {
	ID          string       `json:"id"`
	ThreadID    string       `json:"thread_id"`
	RFCID       string       `json:"rfc_id,omitempty"`
	From        string       `json:"from"`
	To          []string     `json:"to"`
	Cc          []string     `json:"cc"`
	Subject     string       `json:"subject"`
	Date        time.Time    `json:"date"`
	Snippet     string       `json:"snippet"`
	BodyText    string       `json:"body_text"`
	BodyHTML    string       `json:"body_html,omitempty"`
	Attachments []Attachment `json:"attachments"`
}

type InternalNote struct {
	ID       string    `json:"id"`
	AuthorID string    `json:"author_id"`
	Body     string    `json:"body"`
	Date     time.Time `json:"date"`
}

// Thread is the aggregate root for one conversation. Messages are ordered by
// arrival; Mailbox and TenantID never change after creation. UpdatedAt moves
// only when the aggregate actually mutates, so re-syncing unchanged provider
// state is byte-stable.
type Thread struct {
	ID            string         `json:"id"`
	TenantID      string         `json:"tenant_id"`
	Mailbox       string         `json:"mailbox"`
	Subject       string         `json:"subject"`
	Snippet       string         `json:"snippet"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Participants  []string       `json:"participants"`
	Messages      []Message      `json:"messages"`
	Status        ThreadStatus   `json:"status"`
	AssignedTo    string         `json:"assigned_to,omitempty"`
	Priority      Priority       `json:"priority"`
	Tags          []string       `json:"tags"`
	InternalNotes []InternalNote `json:"internal_notes"`
}

// LastMessage returns the most recently arrived message, or nil for an empty
// thread.
func (t *Thread) LastMessage() *Message {
	if len(t.Messages) == 0 {
		return nil
	}
	return &t.Messages[len(t.Messages)-1]
}

// HasNote reports whether a note with the given id already exists.
func (t *Thread) HasNote(noteID string) bool {
	for _, note := range t.InternalNotes {
		if note.ID == noteID {
			return true
		}
	}
	return false
}

// TriageNoteID is the deterministic id of the AI triage note for a message.
func TriageNoteID(messageID string) string {
	return "note-ai-" + messageID
}

// InboxSummary is the thread projection used by inbox listings.
type InboxSummary struct {
	ID           string       `json:"id"`
	TenantID     string       `json:"tenant_id"`
	Mailbox      string       `json:"mailbox"`
	Subject      string       `json:"subject"`
	Snippet      string       `json:"snippet"`
	UpdatedAt    time.Time    `json:"updated_at"`
	Participants []string     `json:"participants"`
	Status       ThreadStatus `json:"status"`
	AssignedTo   string       `json:"assigned_to,omitempty"`
	Priority     Priority     `json:"priority"`
	Tags         []string     `json:"tags"`
}

// Summary projects the aggregate into its inbox listing shape.
func (t *Thread) Summary() InboxSummary {
	return InboxSummary{
		ID:           t.ID,
		TenantID:     t.TenantID,
		Mailbox:      t.Mailbox,
		Subject:      t.Subject,
		Snippet:      t.Snippet,
		UpdatedAt:    t.UpdatedAt,
		Participants: t.Participants,
		Status:       t.Status,
		AssignedTo:   t.AssignedTo,
		Priority:     t.Priority,
		Tags:         t.Tags,
	}
}
