package model

import "time"

// Recording types produced by the surveillance capture pipeline.
const (
	RecordingCamera = "camera"
	RecordingScreen = "screen"
)

// LocalRecording describes a capture file tied to a session. The binary file
// and this row are deleted together after the upload is confirmed.
type LocalRecording struct {
	ID            uint       `gorm:"primarykey" json:"id"`
	SessionID     string     `json:"session_id" gorm:"not null;index"`
	RecordingType string     `json:"recording_type" gorm:"not null"`
	FilePath      string     `json:"file_path" gorm:"not null"`
	FileSize      int64      `json:"file_size" gorm:"not null"`
	Duration      *int64     `json:"duration,omitempty"` // seconds
	Uploaded      bool       `json:"uploaded" gorm:"default:false"`
	UploadedAt    *time.Time `json:"uploaded_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (LocalRecording) TableName() string { return "local_recordings" }
