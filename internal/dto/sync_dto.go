package dto

// Wire payloads exchanged between the candidate device and the admin
// ingestion API. Field names are part of the sync protocol.

// AnswerData is one answer inside a test-result submission. Answer is nil
// when the question was skipped.
type AnswerData struct {
	QuestionID int64   `json:"question_id" binding:"required"`
	Answer     *string `json:"answer,omitempty"`
	AnsweredAt string  `json:"answered_at"`
}

// TestResultPayload is the body of POST /api/test-results. Checksum is a
// client-computed idempotency key over session id + answers.
type TestResultPayload struct {
	SessionID   string       `json:"session_id" binding:"required"`
	EventID     int64        `json:"event_id" binding:"required"`
	UserID      int64        `json:"user_id" binding:"required"`
	Answers     []AnswerData `json:"answers" binding:"required,dive"`
	CompletedAt string       `json:"completed_at"`
	Checksum    string       `json:"checksum,omitempty"`
}

// SubmitResponse acknowledges a submission.
type SubmitResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	ResultID *int64 `json:"result_id,omitempty"`
}

// EventResponse is the event-lookup body for GET /api/events/:code.
type EventResponse struct {
	ID          int64   `json:"id"`
	EventName   string  `json:"event_name"`
	EventCode   string  `json:"event_code"`
	Description *string `json:"description,omitempty"`
	Status      string  `json:"status"`
}

// HealthResponse is returned by GET /api/health. Carries no business
// semantics; the transport client only checks the status code.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// SyncLogResponse is one audit row in GET /api/sync-logs.
type SyncLogResponse struct {
	ID              int64   `json:"id"`
	ClientSessionID string  `json:"client_session_id"`
	UserID          int64   `json:"user_id"`
	DataType        string  `json:"data_type"`
	PayloadSize     *int64  `json:"payload_size,omitempty"`
	Status          string  `json:"status"`
	ErrorMessage    *string `json:"error_message,omitempty"`
	ReceivedAt      string  `json:"received_at"`
}

// ReviewResponse is the AI-generated narrative for a stored test result.
type ReviewResponse struct {
	ResultID int64  `json:"result_id"`
	Review   string `json:"review"`
}
