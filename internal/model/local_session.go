package model

import "time"

// Session lifecycle statuses on the candidate device.
const (
	SessionInProgress = "in_progress"
	SessionCompleted  = "completed"
	SessionSynced     = "synced"
)

// LocalSession is one test attempt on the candidate device. SessionID is a
// client-generated opaque string; server-assigned ids are only known after sync.
type LocalSession struct {
	ID          uint       `gorm:"primarykey" json:"id"`
	SessionID   string     `json:"session_id" gorm:"uniqueIndex;not null"`
	EventID     int64      `json:"event_id" gorm:"not null"`
	UserID      int64      `json:"user_id" gorm:"not null"`
	EventCode   *string    `json:"event_code,omitempty"`
	StartedAt   time.Time  `json:"started_at" gorm:"autoCreateTime"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Status      string     `json:"status" gorm:"default:'in_progress'"`
}

func (LocalSession) TableName() string { return "local_sessions" }
