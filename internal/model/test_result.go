package model

import "time"

// TestResult is the canonical, server-owned copy of a candidate submission.
// Answers stay a JSON column (genuinely variable payload); identity and size
// are typed columns. Checksum makes redelivery idempotent: an exact duplicate
// hits the unique index instead of inserting a second row.
type TestResult struct {
	ID              int64     `gorm:"primarykey" json:"id"`
	UserID          int64     `json:"user_id" gorm:"not null;index"`
	EventID         int64     `json:"event_id" gorm:"not null;index"`
	Answers         string    `json:"answers" gorm:"type:text;not null"`
	ClientSessionID string    `json:"client_session_id" gorm:"not null;index"`
	Checksum        string    `json:"checksum" gorm:"uniqueIndex"`
	SyncSource      string    `json:"sync_source" gorm:"default:'client_sync'"`
	CompletedAt     *string   `json:"completed_at,omitempty"`
	ReceivedAt      time.Time `json:"received_at" gorm:"autoCreateTime"`
}

func (TestResult) TableName() string { return "test_results" }
