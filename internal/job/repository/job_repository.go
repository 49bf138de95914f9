package repository

import (
	"encoding/json"
	"fmt"
	"time"

	jobdomain "deskmail-backend/internal/job/domain"

	"gorm.io/gorm"
)

type JobRepository interface {
	Enqueue(job *jobdomain.Job) error
	ListQueued(tenantID string, limit int) ([]*jobdomain.Job, error)
	List(tenantID string) ([]*jobdomain.Job, error)
	Update(job *jobdomain.Job) error
}

type JobRecord struct {
	ID        string `gorm:"primaryKey"`
	TenantID  string `gorm:"index"`
	Type      string
	Payload   string
	Status    string `gorm:"index"`
	Attempts  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (JobRecord) TableName() string { return "jobs" }

type jobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) Enqueue(job *jobdomain.Job) error {
	record, err := jobToRecord(job)
	if err != nil {
		return err
	}
	return r.db.Create(record).Error
}

func (r *jobRepository) ListQueued(tenantID string, limit int) ([]*jobdomain.Job, error) {
	if limit <= 0 {
		limit = 3
	}
	// Failed jobs stay eligible; there is no backoff, a broken job is
	// re-attempted on every drain until removed.
	var records []JobRecord
	err := r.db.Where("tenant_id = ? AND status IN ?", tenantID,
		[]string{string(jobdomain.StatusQueued), string(jobdomain.StatusFailed)}).
		Order("created_at ASC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, err
	}
	return recordsToJobs(records)
}

func (r *jobRepository) List(tenantID string) ([]*jobdomain.Job, error) {
	var records []JobRecord
	err := r.db.Where("tenant_id = ?", tenantID).Order("created_at DESC").Find(&records).Error
	if err != nil {
		return nil, err
	}
	return recordsToJobs(records)
}

func (r *jobRepository) Update(job *jobdomain.Job) error {
	record, err := jobToRecord(job)
	if err != nil {
		return err
	}
	return r.db.Model(&JobRecord{}).Where("id = ?", job.ID).Updates(map[string]any{
		"status":     record.Status,
		"attempts":   record.Attempts,
		"last_error": record.LastError,
		"updated_at": record.UpdatedAt,
	}).Error
}

func jobToRecord(job *jobdomain.Job) (*JobRecord, error) {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal job payload: %w", err)
	}
	return &JobRecord{
		ID:        job.ID,
		TenantID:  job.TenantID,
		Type:      string(job.Type),
		Payload:   string(payload),
		Status:    string(job.Status),
		Attempts:  job.Attempts,
		LastError: job.LastError,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}, nil
}

func recordsToJobs(records []JobRecord) ([]*jobdomain.Job, error) {
	jobs := make([]*jobdomain.Job, 0, len(records))
	for _, record := range records {
		job := &jobdomain.Job{
			ID:        record.ID,
			TenantID:  record.TenantID,
			Type:      jobdomain.JobType(record.Type),
			Status:    jobdomain.JobStatus(record.Status),
			Attempts:  record.Attempts,
			LastError: record.LastError,
			CreatedAt: record.CreatedAt,
			UpdatedAt: record.UpdatedAt,
		}
		if err := json.Unmarshal([]byte(record.Payload), &job.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload for job %s: %w", record.ID, err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
