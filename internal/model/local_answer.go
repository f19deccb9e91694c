package model

import "time"

// LocalAnswer is one response to one question within a session. Append-only:
// re-answering a question inserts a new row, and the latest answered_at wins
// when the sync payload is assembled.
type LocalAnswer struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	SessionID  string    `json:"session_id" gorm:"not null;index"`
	QuestionID int64     `json:"question_id" gorm:"not null"`
	Answer     *string   `json:"answer,omitempty"` // nil means skipped
	AnsweredAt time.Time `json:"answered_at" gorm:"autoCreateTime"`
}

func (LocalAnswer) TableName() string { return "local_answers" }
