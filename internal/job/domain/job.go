package domain

import "time"

type JobType string

const (
	TypeSync    JobType = "sync"
	TypeAIRetry JobType = "ai_retry"
)

type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Payload keys used by the drain dispatcher.
const (
	PayloadThreadID = "threadId"
	PayloadAction   = "action"
	PayloadMailbox  = "mailbox"
	PayloadMode     = "mode"

	ActionTriage = "triage"
)

// Job is a deferred retry of a failed AI operation or a deferred mailbox
// sync. Jobs are consumed only by an explicit drain; there is no scheduler.
type Job struct {
	ID        string            `json:"id"`
	TenantID  string            `json:"tenant_id"`
	Type      JobType           `json:"type"`
	Payload   map[string]string `json:"payload"`
	Status    JobStatus         `json:"status"`
	Attempts  int               `json:"attempts"`
	LastError string            `json:"last_error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
