package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tdhoang/Talaria/internal/model"
)

// ErrSessionExists is returned when a client-generated session id collides
// with an existing session. Callers are expected to generate UUIDs.
var ErrSessionExists = errors.New("session id already exists")

// ErrNotFound is returned for lookups of unknown sessions or settings.
var ErrNotFound = errors.New("record not found")

// StoreRepository is the candidate-local durable store: sessions, answers,
// recording descriptors, the sync queue, and per-device settings. Every write
// commits before the corresponding queue entry becomes visible to the worker,
// so the worker never observes a queue item whose backing data is missing.
type StoreRepository interface {
	CreateSession(sessionID string, eventID, userID int64, eventCode *string) (uint, error)
	Session(sessionID string) (*model.LocalSession, error)
	CompleteSession(sessionID string) error

	SaveAnswer(sessionID string, questionID int64, answer *string) (uint, error)
	SessionAnswers(sessionID string) ([]model.LocalAnswer, error)
	LatestAnswers(sessionID string) ([]model.LocalAnswer, error)

	SaveRecording(sessionID, recordingType, filePath string, fileSize int64, duration *int64) (uint, error)
	PendingRecordings(sessionID string) ([]model.LocalRecording, error)
	MarkRecordingUploaded(sessionID, recordingType string) error

	Enqueue(dataType, sessionID, payload string, priority int) (uint, error)
	FetchPending(limit int) ([]model.SyncQueueItem, error)
	MarkSynced(queueID uint) error
	IncrementAttempt(queueID uint, errMsg string) error
	MarkDead(queueID uint, errMsg string) error
	CleanupSession(sessionID string) error

	DeadItems() ([]model.SyncQueueItem, error)
	Requeue(queueID uint) error
	CountPending() (int64, error)

	Setting(key string) (string, error)
	PutSetting(key, value string) error
}

type storeRepository struct {
	db          *gorm.DB
	maxAttempts int
}

func NewStoreRepository(db *gorm.DB, maxAttempts int) StoreRepository {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &storeRepository{db: db, maxAttempts: maxAttempts}
}

// ===== Sessions =====

func (r *storeRepository) CreateSession(sessionID string, eventID, userID int64, eventCode *string) (uint, error) {
	var existing model.LocalSession
	err := r.db.Where("session_id = ?", sessionID).First(&existing).Error
	if err == nil {
		return 0, ErrSessionExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	session := model.LocalSession{
		SessionID: sessionID,
		EventID:   eventID,
		UserID:    userID,
		EventCode: eventCode,
		Status:    model.SessionInProgress,
	}
	if err := r.db.Create(&session).Error; err != nil {
		return 0, err
	}
	return session.ID, nil
}

func (r *storeRepository) Session(sessionID string) (*model.LocalSession, error) {
	var session model.LocalSession
	if err := r.db.Where("session_id = ?", sessionID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *storeRepository) CompleteSession(sessionID string) error {
	now := time.Now()
	return r.db.Model(&model.LocalSession{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{"status": model.SessionCompleted, "completed_at": now}).Error
}

// ===== Answers =====

func (r *storeRepository) SaveAnswer(sessionID string, questionID int64, answer *string) (uint, error) {
	row := model.LocalAnswer{
		SessionID:  sessionID,
		QuestionID: questionID,
		Answer:     answer,
	}
	if err := r.db.Create(&row).Error; err != nil {
		return 0, err
	}
	return row.ID, nil
}

func (r *storeRepository) SessionAnswers(sessionID string) ([]model.LocalAnswer, error) {
	var answers []model.LocalAnswer
	err := r.db.Where("session_id = ?", sessionID).
		Order("answered_at ASC, id ASC").
		Find(&answers).Error
	return answers, err
}

// LatestAnswers collapses the append-only answer rows into the authoritative
// snapshot: one entry per distinct question, the most recently answered row
// winning. Insertion id breaks answered_at ties.
func (r *storeRepository) LatestAnswers(sessionID string) ([]model.LocalAnswer, error) {
	rows, err := r.SessionAnswers(sessionID)
	if err != nil {
		return nil, err
	}
	latest := make(map[int64]int, len(rows)) // question id -> index into rows
	order := make([]int64, 0, len(rows))
	for i, a := range rows {
		if _, seen := latest[a.QuestionID]; !seen {
			order = append(order, a.QuestionID)
		}
		latest[a.QuestionID] = i // rows are sorted ascending, later wins
	}
	out := make([]model.LocalAnswer, 0, len(order))
	for _, qid := range order {
		out = append(out, rows[latest[qid]])
	}
	return out, nil
}

// ===== Recordings =====

func (r *storeRepository) SaveRecording(sessionID, recordingType, filePath string, fileSize int64, duration *int64) (uint, error) {
	rec := model.LocalRecording{
		SessionID:     sessionID,
		RecordingType: recordingType,
		FilePath:      filePath,
		FileSize:      fileSize,
		Duration:      duration,
	}
	if err := r.db.Create(&rec).Error; err != nil {
		return 0, err
	}
	return rec.ID, nil
}

func (r *storeRepository) PendingRecordings(sessionID string) ([]model.LocalRecording, error) {
	var recs []model.LocalRecording
	err := r.db.Where("session_id = ? AND uploaded = ?", sessionID, false).Find(&recs).Error
	return recs, err
}

func (r *storeRepository) MarkRecordingUploaded(sessionID, recordingType string) error {
	now := time.Now()
	return r.db.Model(&model.LocalRecording{}).
		Where("session_id = ? AND recording_type = ?", sessionID, recordingType).
		Updates(map[string]interface{}{"uploaded": true, "uploaded_at": now}).Error
}

// ===== Sync queue =====

func (r *storeRepository) Enqueue(dataType, sessionID, payload string, priority int) (uint, error) {
	item := model.SyncQueueItem{
		DataType:  dataType,
		SessionID: sessionID,
		Payload:   payload,
		Priority:  priority,
	}
	if err := r.db.Create(&item).Error; err != nil {
		return 0, err
	}
	log.Debug().Uint("queueID", item.ID).Str("dataType", dataType).Str("sessionID", sessionID).Msg("Enqueued sync item")
	return item.ID, nil
}

// FetchPending returns the drainable slice of the outbox: not yet synced, not
// yet exhausted, highest priority first, FIFO within a priority.
func (r *storeRepository) FetchPending(limit int) ([]model.SyncQueueItem, error) {
	var items []model.SyncQueueItem
	err := r.db.Where("synced = ? AND sync_attempts < ?", false, r.maxAttempts).
		Order("priority ASC, created_at ASC, id ASC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

// MarkSynced applies the success transition. The synced = 0 guard makes it a
// no-op when a second worker instance already claimed the item.
func (r *storeRepository) MarkSynced(queueID uint) error {
	now := time.Now()
	return r.db.Model(&model.SyncQueueItem{}).
		Where("id = ? AND synced = ?", queueID, false).
		Updates(map[string]interface{}{"synced": true, "synced_at": now}).Error
}

func (r *storeRepository) IncrementAttempt(queueID uint, errMsg string) error {
	now := time.Now()
	return r.db.Model(&model.SyncQueueItem{}).
		Where("id = ?", queueID).
		Updates(map[string]interface{}{
			"sync_attempts":   gorm.Expr("sync_attempts + 1"),
			"last_attempt_at": now,
			"last_error":      errMsg,
		}).Error
}

// MarkDead jumps the attempt counter to the ceiling, taking the item out of
// rotation immediately. Used for non-retryable 4xx rejections.
func (r *storeRepository) MarkDead(queueID uint, errMsg string) error {
	now := time.Now()
	return r.db.Model(&model.SyncQueueItem{}).
		Where("id = ?", queueID).
		Updates(map[string]interface{}{
			"sync_attempts":   r.maxAttempts,
			"last_attempt_at": now,
			"last_error":      errMsg,
		}).Error
}

// CleanupSession removes data made redundant by a confirmed sync: the synced
// queue items, every answer row, and the descriptors of uploaded recordings,
// then flips the session to synced. Idempotent; must run only after
// MarkSynced has committed.
func (r *storeRepository) CleanupSession(sessionID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ? AND synced = ?", sessionID, true).
			Delete(&model.SyncQueueItem{}).Error; err != nil {
			return fmt.Errorf("delete synced queue items: %w", err)
		}
		if err := tx.Where("session_id = ?", sessionID).
			Delete(&model.LocalAnswer{}).Error; err != nil {
			return fmt.Errorf("delete local answers: %w", err)
		}
		if err := tx.Where("session_id = ? AND uploaded = ?", sessionID, true).
			Delete(&model.LocalRecording{}).Error; err != nil {
			return fmt.Errorf("delete uploaded recordings: %w", err)
		}
		if err := tx.Model(&model.LocalSession{}).
			Where("session_id = ?", sessionID).
			Update("status", model.SessionSynced).Error; err != nil {
			return fmt.Errorf("update session status: %w", err)
		}
		return nil
	})
}

// ===== Dead letter =====

func (r *storeRepository) DeadItems() ([]model.SyncQueueItem, error) {
	var items []model.SyncQueueItem
	err := r.db.Where("synced = ? AND sync_attempts >= ?", false, r.maxAttempts).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// Requeue gives a dead item a fresh retry budget.
func (r *storeRepository) Requeue(queueID uint) error {
	result := r.db.Model(&model.SyncQueueItem{}).
		Where("id = ? AND synced = ?", queueID, false).
		Updates(map[string]interface{}{"sync_attempts": 0, "last_error": nil})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *storeRepository) CountPending() (int64, error) {
	var count int64
	err := r.db.Model(&model.SyncQueueItem{}).
		Where("synced = ? AND sync_attempts < ?", false, r.maxAttempts).
		Count(&count).Error
	return count, err
}

// ===== Settings =====

func (r *storeRepository) Setting(key string) (string, error) {
	var s model.Setting
	if err := r.db.Where("key = ?", key).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return s.Value, nil
}

func (r *storeRepository) PutSetting(key, value string) error {
	s := model.Setting{Key: key, Value: value}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&s).Error
}
