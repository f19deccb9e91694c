package model

import "time"

// RecordingFile is the server-side descriptor of an uploaded surveillance
// recording, written alongside the binary on ingestion.
type RecordingFile struct {
	ID              int64     `gorm:"primarykey" json:"id"`
	ClientSessionID string    `json:"client_session_id" gorm:"not null;index"`
	RecordingType   string    `json:"recording_type" gorm:"not null"`
	FilePath        string    `json:"file_path" gorm:"not null"`
	FileSize        int64     `json:"file_size" gorm:"not null"`
	ReceivedAt      time.Time `json:"received_at" gorm:"autoCreateTime"`
}

func (RecordingFile) TableName() string { return "recording_files" }
