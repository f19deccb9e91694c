package model

import "time"

// Queue data types and their default priorities. Lower value drains first:
// test-result JSON is small and urgent, recordings are large and can wait.
const (
	DataTypeTestResult = "test_result"
	DataTypeRecording  = "recording"

	PriorityTestResult = 1
	PriorityRecording  = 5
)

// SyncQueueItem is the durability unit for outbound transfer. An item leaves
// pending state only through MarkSynced (acknowledged by the server) or by
// exhausting its attempt budget, in which case it stays in storage as a dead
// item for operator inspection.
type SyncQueueItem struct {
	ID            uint       `gorm:"primarykey" json:"id"`
	DataType      string     `json:"data_type" gorm:"not null"`
	SessionID     string     `json:"session_id" gorm:"not null;index"`
	Payload       string     `json:"payload" gorm:"type:text;not null"`
	Priority      int        `json:"priority" gorm:"not null;default:5"`
	CreatedAt     time.Time  `json:"created_at"`
	Synced        bool       `json:"synced" gorm:"default:false"`
	SyncedAt      *time.Time `json:"synced_at,omitempty"`
	SyncAttempts  int        `json:"sync_attempts" gorm:"default:0"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	LastError     *string    `json:"last_error,omitempty"`
}

func (SyncQueueItem) TableName() string { return "sync_queue" }
