package repository

import (
	"encoding/json"
	"fmt"
	"time"

	threaddomain "deskmail-backend/internal/thread/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ThreadRecord is the relational shape of the Thread aggregate. The variable
// size parts (messages, notes, participants, tags) are stored as JSON since
// the aggregate is always read and written whole.
type ThreadRecord struct {
	ID           string `gorm:"primaryKey"`
	TenantID     string `gorm:"index:idx_threads_tenant"`
	Mailbox      string `gorm:"index:idx_threads_mailbox"`
	Subject      string
	Snippet      string
	UpdatedAt    time.Time `gorm:"index"`
	Participants string
	Messages     string
	Status       string
	AssignedTo   string
	Priority     string
	Tags         string
	Notes        string
}

func (ThreadRecord) TableName() string { return "threads" }

type threadRepository struct {
	db *gorm.DB
}

func NewThreadRepository(db *gorm.DB) ThreadRepository {
	return &threadRepository{db: db}
}

func (r *threadRepository) Get(tenantID, threadID string) (*threaddomain.Thread, error) {
	var record ThreadRecord
	err := r.db.Where("tenant_id = ? AND id = ?", tenantID, threadID).First(&record).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return recordToThread(&record)
}

func (r *threadRepository) Upsert(thread *threaddomain.Thread) error {
	record, err := threadToRecord(thread)
	if err != nil {
		return err
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(record).Error
}

func (r *threadRepository) ListByTenant(tenantID string) ([]*threaddomain.Thread, error) {
	var records []ThreadRecord
	if err := r.db.Where("tenant_id = ?", tenantID).Order("updated_at DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	return recordsToThreads(records)
}

func (r *threadRepository) ListByMailbox(tenantID, mailbox string) ([]*threaddomain.Thread, error) {
	var records []ThreadRecord
	if err := r.db.Where("tenant_id = ? AND mailbox = ?", tenantID, mailbox).
		Order("updated_at DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	return recordsToThreads(records)
}

func (r *threadRepository) ListSummaries(tenantID string) ([]threaddomain.InboxSummary, error) {
	threads, err := r.ListByTenant(tenantID)
	if err != nil {
		return nil, err
	}
	summaries := make([]threaddomain.InboxSummary, 0, len(threads))
	for _, thread := range threads {
		summaries = append(summaries, thread.Summary())
	}
	return summaries, nil
}

func (r *threadRepository) Workload(tenantID string) (map[string]int, error) {
	var rows []struct {
		AssignedTo string
		Count      int
	}
	err := r.db.Model(&ThreadRecord{}).
		Select("assigned_to, COUNT(*) as count").
		Where("tenant_id = ? AND status <> ? AND assigned_to <> ''", tenantID, string(threaddomain.StatusClosed)).
		Group("assigned_to").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	workload := make(map[string]int, len(rows))
	for _, row := range rows {
		workload[row.AssignedTo] = row.Count
	}
	return workload, nil
}

func recordsToThreads(records []ThreadRecord) ([]*threaddomain.Thread, error) {
	threads := make([]*threaddomain.Thread, 0, len(records))
	for i := range records {
		thread, err := recordToThread(&records[i])
		if err != nil {
			return nil, err
		}
		threads = append(threads, thread)
	}
	return threads, nil
}

func threadToRecord(thread *threaddomain.Thread) (*ThreadRecord, error) {
	participants, err := json.Marshal(thread.Participants)
	if err != nil {
		return nil, fmt.Errorf("marshal participants: %w", err)
	}
	messages, err := json.Marshal(thread.Messages)
	if err != nil {
		return nil, fmt.Errorf("marshal messages: %w", err)
	}
	tags, err := json.Marshal(thread.Tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	notes, err := json.Marshal(thread.InternalNotes)
	if err != nil {
		return nil, fmt.Errorf("marshal notes: %w", err)
	}
	return &ThreadRecord{
		ID:           thread.ID,
		TenantID:     thread.TenantID,
		Mailbox:      thread.Mailbox,
		Subject:      thread.Subject,
		Snippet:      thread.Snippet,
		UpdatedAt:    thread.UpdatedAt,
		Participants: string(participants),
		Messages:     string(messages),
		Status:       string(thread.Status),
		AssignedTo:   thread.AssignedTo,
		Priority:     string(thread.Priority),
		Tags:         string(tags),
		Notes:        string(notes),
	}, nil
}

func recordToThread(record *ThreadRecord) (*threaddomain.Thread, error) {
	thread := &threaddomain.Thread{
		ID:         record.ID,
		TenantID:   record.TenantID,
		Mailbox:    record.Mailbox,
		Subject:    record.Subject,
		Snippet:    record.Snippet,
		UpdatedAt:  record.UpdatedAt,
		Status:     threaddomain.ThreadStatus(record.Status),
		AssignedTo: record.AssignedTo,
		Priority:   threaddomain.Priority(record.Priority),
	}
	if err := json.Unmarshal([]byte(record.Participants), &thread.Participants); err != nil {
		return nil, fmt.Errorf("unmarshal participants for thread %s: %w", record.ID, err)
	}
	if err := json.Unmarshal([]byte(record.Messages), &thread.Messages); err != nil {
		return nil, fmt.Errorf("unmarshal messages for thread %s: %w", record.ID, err)
	}
	if err := json.Unmarshal([]byte(record.Tags), &thread.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags for thread %s: %w", record.ID, err)
	}
	if err := json.Unmarshal([]byte(record.Notes), &thread.InternalNotes); err != nil {
		return nil, fmt.Errorf("unmarshal notes for thread %s: %w", record.ID, err)
	}
	return thread, nil
}
