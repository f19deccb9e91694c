package repository

import (
	"gorm.io/gorm"

	"github.com/tdhoang/Talaria/internal/model"
)

type RecordingRepository interface {
	Save(rec *model.RecordingFile) error
	FindBySession(clientSessionID string) ([]model.RecordingFile, error)
}

type recordingRepository struct {
	db *gorm.DB
}

func NewRecordingRepository(db *gorm.DB) RecordingRepository {
	return &recordingRepository{db: db}
}

func (r *recordingRepository) Save(rec *model.RecordingFile) error {
	return r.db.Create(rec).Error
}

func (r *recordingRepository) FindBySession(clientSessionID string) ([]model.RecordingFile, error) {
	var recs []model.RecordingFile
	err := r.db.Where("client_session_id = ?", clientSessionID).Find(&recs).Error
	return recs, err
}
