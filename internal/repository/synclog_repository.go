package repository

import (
	"gorm.io/gorm"

	"github.com/tdhoang/Talaria/internal/model"
)

// SyncLogRepository appends to and reads the server-side ingestion audit log.
// Rows are never mutated or deleted.
type SyncLogRepository interface {
	Append(entry *model.SyncLog) error
	List(userID *int64, limit int) ([]model.SyncLog, error)
}

type syncLogRepository struct {
	db *gorm.DB
}

func NewSyncLogRepository(db *gorm.DB) SyncLogRepository {
	return &syncLogRepository{db: db}
}

func (r *syncLogRepository) Append(entry *model.SyncLog) error {
	return r.db.Create(entry).Error
}

func (r *syncLogRepository) List(userID *int64, limit int) ([]model.SyncLog, error) {
	var logs []model.SyncLog
	q := r.db.Order("received_at DESC, id DESC").Limit(limit)
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	err := q.Find(&logs).Error
	return logs, err
}
