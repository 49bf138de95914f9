package repository

import (
	"time"

	threaddomain "deskmail-backend/internal/thread/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type syncStateRepository struct {
	db *gorm.DB
}

func NewSyncStateRepository(db *gorm.DB) SyncStateRepository {
	return &syncStateRepository{db: db}
}

func (r *syncStateRepository) GetCursor(tenantID, mailbox string) (threaddomain.Cursor, error) {
	var state threaddomain.MailboxSyncState
	err := r.db.Where("tenant_id = ? AND mailbox = ?", tenantID, mailbox).First(&state).Error
	if err == gorm.ErrRecordNotFound {
		return threaddomain.Cursor{}, nil
	}
	if err != nil {
		return threaddomain.Cursor{}, err
	}
	return threaddomain.NewCursor(state.HistoryID), nil
}

func (r *syncStateRepository) SaveCursor(tenantID, mailbox string, cursor threaddomain.Cursor) error {
	state := threaddomain.MailboxSyncState{
		TenantID:  tenantID,
		Mailbox:   mailbox,
		HistoryID: cursor.HistoryID,
		UpdatedAt: time.Now(),
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "mailbox"}},
		UpdateAll: true,
	}).Create(&state).Error
}
