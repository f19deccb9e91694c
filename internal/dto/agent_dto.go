package dto

// DTOs for the candidate-device control API.

// QueueItemDTO is one sync-queue entry as shown to the operator.
type QueueItemDTO struct {
	ID           uint    `json:"id"`
	DataType     string  `json:"data_type"`
	SessionID    string  `json:"session_id"`
	Priority     int     `json:"priority"`
	SyncAttempts int     `json:"sync_attempts"`
	LastError    *string `json:"last_error,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

// QueueStatusDTO summarizes the local outbox.
type QueueStatusDTO struct {
	PendingCount int            `json:"pending_count"`
	DeadCount    int            `json:"dead_count"`
	LastError    string         `json:"last_error,omitempty"`
	Items        []QueueItemDTO `json:"items"`
}

// StartSessionRequest begins a local test session. SessionID is optional;
// the agent generates a UUID when it is absent.
type StartSessionRequest struct {
	SessionID string  `json:"session_id"`
	EventID   int64   `json:"event_id" binding:"required"`
	UserID    int64   `json:"user_id" binding:"required"`
	EventCode *string `json:"event_code,omitempty"`
}

// AnswerRequest records one answer. Answer may be null for a skipped question.
type AnswerRequest struct {
	QuestionID int64   `json:"question_id" binding:"required"`
	Answer     *string `json:"answer,omitempty"`
}

// RecordingRequest registers a finished capture file for upload.
type RecordingRequest struct {
	RecordingType string `json:"recording_type" binding:"required"`
	FilePath      string `json:"file_path" binding:"required"`
	FileSize      int64  `json:"file_size" binding:"required"`
	Duration      *int64 `json:"duration,omitempty"`
}

// ServerURLRequest updates the persisted sync target.
type ServerURLRequest struct {
	URL string `json:"url" binding:"required"`
}

// ConnectionTestResponse reports a health-probe outcome.
type ConnectionTestResponse struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}
