package domain

import "time"

// Event is one append-only audit log entry. ActorID is an agent id, or
// "system-ai" for automated actions.
type Event struct {
	ID         string            `json:"id"`
	TenantID   string            `json:"tenant_id"`
	ActorID    string            `json:"actor_id"`
	Action     string            `json:"action"`
	TargetType string            `json:"target_type"`
	TargetID   string            `json:"target_id,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
