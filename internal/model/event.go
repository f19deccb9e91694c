package model

import "time"

// Event is an assessment event on the admin server. Candidate devices look it
// up by access code before any session exists.
type Event struct {
	ID          int64     `gorm:"primarykey" json:"id"`
	EventName   string    `json:"event_name" gorm:"not null"`
	Description *string   `json:"description,omitempty"`
	Status      string    `json:"status" gorm:"default:'active'"`
	EventCode   *string   `json:"event_code,omitempty" gorm:"uniqueIndex"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Event) TableName() string { return "events" }
