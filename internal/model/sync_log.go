package model

import "time"

// Sync log statuses.
const (
	SyncStatusSuccess = "success"
	SyncStatusFailed  = "failed"
)

// SyncLog is one append-only audit row per ingestion attempt, success or
// failure. Never mutated or deleted; purely for operational visibility.
type SyncLog struct {
	ID              int64     `gorm:"primarykey" json:"id"`
	ClientSessionID string    `json:"client_session_id" gorm:"not null;index"`
	UserID          int64     `json:"user_id" gorm:"index"`
	DataType        string    `json:"data_type" gorm:"not null"`
	PayloadSize     *int64    `json:"payload_size,omitempty"`
	ClientIP        *string   `json:"client_ip,omitempty"`
	Status          string    `json:"status" gorm:"not null"`
	ErrorMessage    *string   `json:"error_message,omitempty"`
	ReceivedAt      time.Time `json:"received_at" gorm:"autoCreateTime"`
}

func (SyncLog) TableName() string { return "sync_log" }
