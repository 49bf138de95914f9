package repository

import (
	"encoding/json"
	"fmt"
	"time"

	auditdomain "deskmail-backend/internal/audit/domain"

	"gorm.io/gorm"
)

// EventRepository is append-only; events are never updated or deleted.
type EventRepository interface {
	Append(event auditdomain.Event) error
	List(tenantID string, limit int) ([]auditdomain.Event, error)
}

// EventRecord is the stored shape; metadata rides along as JSON.
type EventRecord struct {
	ID         string `gorm:"primaryKey"`
	TenantID   string `gorm:"index"`
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	Timestamp  time.Time `gorm:"index"`
	Metadata   string
}

func (EventRecord) TableName() string { return "audit_events" }

type eventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Append(event auditdomain.Event) error {
	metadata := ""
	if event.Metadata != nil {
		encoded, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
		metadata = string(encoded)
	}
	record := EventRecord{
		ID:         event.ID,
		TenantID:   event.TenantID,
		ActorID:    event.ActorID,
		Action:     event.Action,
		TargetType: event.TargetType,
		TargetID:   event.TargetID,
		Timestamp:  event.Timestamp,
		Metadata:   metadata,
	}
	return r.db.Create(&record).Error
}

func (r *eventRepository) List(tenantID string, limit int) ([]auditdomain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []EventRecord
	err := r.db.Where("tenant_id = ?", tenantID).
		Order("timestamp DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, err
	}
	events := make([]auditdomain.Event, 0, len(records))
	for _, record := range records {
		event := auditdomain.Event{
			ID:         record.ID,
			TenantID:   record.TenantID,
			ActorID:    record.ActorID,
			Action:     record.Action,
			TargetType: record.TargetType,
			TargetID:   record.TargetID,
			Timestamp:  record.Timestamp,
		}
		if record.Metadata != "" {
			if err := json.Unmarshal([]byte(record.Metadata), &event.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal audit metadata for %s: %w", record.ID, err)
			}
		}
		events = append(events, event)
	}
	return events, nil
}
