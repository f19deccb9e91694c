package service

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"

	"github.com/tdhoang/Talaria/internal/dto"
	"github.com/tdhoang/Talaria/internal/model"
	"github.com/tdhoang/Talaria/internal/repository"
)

// IngestService accepts candidate-submitted payloads, persists them durably,
// and appends an audit row for every attempt. Audit writes are best-effort:
// a failed log insert never changes the response already decided.
type IngestService interface {
	SubmitTestResult(payload dto.TestResultPayload, clientIP string) (*dto.SubmitResponse, error)
	SaveRecording(sessionID, recordingType, filename string, file io.Reader, clientIP string) (*dto.SubmitResponse, error)
	EventByCode(code string) (*dto.EventResponse, error)
	SyncLogs(userID *int64, limit int) ([]dto.SyncLogResponse, error)
}

type ingestService struct {
	eventRepo     repository.EventRepository
	resultRepo    repository.ResultRepository
	syncLogRepo   repository.SyncLogRepository
	recordingRepo repository.RecordingRepository
	recordingsDir string
}

func NewIngestService(
	eventRepo repository.EventRepository,
	resultRepo repository.ResultRepository,
	syncLogRepo repository.SyncLogRepository,
	recordingRepo repository.RecordingRepository,
	recordingsDir string,
) IngestService {
	return &ingestService{
		eventRepo:     eventRepo,
		resultRepo:    resultRepo,
		syncLogRepo:   syncLogRepo,
		recordingRepo: recordingRepo,
		recordingsDir: recordingsDir,
	}
}

func (s *ingestService) audit(sessionID string, userID int64, dataType string, payloadSize *int64, clientIP, status string, errMsg *string) {
	entry := model.SyncLog{
		ClientSessionID: sessionID,
		UserID:          userID,
		DataType:        dataType,
		PayloadSize:     payloadSize,
		Status:          status,
		ErrorMessage:    errMsg,
	}
	if clientIP != "" {
		entry.ClientIP = &clientIP
	}
	if err := s.syncLogRepo.Append(&entry); err != nil {
		// Swallowed: the audit trail must never fail a request.
		log.Error().Err(err).Str("sessionID", sessionID).Msg("Failed to append sync log entry")
	}
}

func (s *ingestService) SubmitTestResult(payload dto.TestResultPayload, clientIP string) (*dto.SubmitResponse, error) {
	answersJSON, err := json.Marshal(payload.Answers)
	if err != nil {
		return nil, fmt.Errorf("serialize answers: %w", err)
	}
	size := int64(len(answersJSON))

	checksum := payload.Checksum
	if checksum == "" {
		// Older clients don't send one; derive it so redeliveries still dedupe.
		h := sha256.Sum256(append([]byte(payload.SessionID), answersJSON...))
		checksum = hex.EncodeToString(h[:])
	}

	result := model.TestResult{
		UserID:          payload.UserID,
		EventID:         payload.EventID,
		Answers:         string(answersJSON),
		ClientSessionID: payload.SessionID,
		Checksum:        checksum,
		SyncSource:      "client_sync",
	}
	if payload.CompletedAt != "" {
		result.CompletedAt = &payload.CompletedAt
	}

	if err := s.resultRepo.Save(&result); err != nil {
		if err == repository.ErrDuplicateResult {
			existing, findErr := s.resultRepo.FindByChecksum(checksum)
			if findErr == nil {
				log.Info().Str("sessionID", payload.SessionID).Int64("resultID", existing.ID).Msg("Duplicate submission acknowledged")
				s.audit(payload.SessionID, payload.UserID, model.DataTypeTestResult, &size, clientIP, model.SyncStatusSuccess, nil)
				return &dto.SubmitResponse{
					Success:  true,
					Message:  "Test result already received",
					ResultID: &existing.ID,
				}, nil
			}
			err = findErr
		}
		msg := err.Error()
		s.audit(payload.SessionID, payload.UserID, model.DataTypeTestResult, &size, clientIP, model.SyncStatusFailed, &msg)
		return nil, err
	}

	s.audit(payload.SessionID, payload.UserID, model.DataTypeTestResult, &size, clientIP, model.SyncStatusSuccess, nil)
	log.Info().Str("sessionID", payload.SessionID).Int64("resultID", result.ID).Msg("Test result ingested")

	return &dto.SubmitResponse{
		Success:  true,
		Message:  "Test result received successfully",
		ResultID: &result.ID,
	}, nil
}

func (s *ingestService) SaveRecording(sessionID, recordingType, filename string, file io.Reader, clientIP string) (*dto.SubmitResponse, error) {
	dir := filepath.Join(s.recordingsDir, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, s.recordingFailure(sessionID, clientIP, fmt.Errorf("create recordings dir: %w", err))
	}

	if filename == "" {
		filename = fmt.Sprintf("%s_%s.webm", sessionID, recordingType)
	}
	path := filepath.Join(dir, filepath.Base(filename))

	out, err := os.Create(path)
	if err != nil {
		return nil, s.recordingFailure(sessionID, clientIP, fmt.Errorf("create recording file: %w", err))
	}
	written, err := io.Copy(out, file)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, s.recordingFailure(sessionID, clientIP, fmt.Errorf("write recording file: %w", err))
	}

	rec := model.RecordingFile{
		ClientSessionID: sessionID,
		RecordingType:   recordingType,
		FilePath:        path,
		FileSize:        written,
	}
	if err := s.recordingRepo.Save(&rec); err != nil {
		return nil, s.recordingFailure(sessionID, clientIP, fmt.Errorf("save recording metadata: %w", err))
	}

	s.audit(sessionID, 0, model.DataTypeRecording, &written, clientIP, model.SyncStatusSuccess, nil)
	log.Info().Str("sessionID", sessionID).Str("type", recordingType).Int64("bytes", written).Msg("Recording ingested")

	return &dto.SubmitResponse{
		Success: true,
		Message: fmt.Sprintf("Recording uploaded successfully: %s", filepath.Base(path)),
	}, nil
}

func (s *ingestService) recordingFailure(sessionID, clientIP string, err error) error {
	msg := err.Error()
	s.audit(sessionID, 0, model.DataTypeRecording, nil, clientIP, model.SyncStatusFailed, &msg)
	return err
}

// EventByCode is the read path; it does not touch the audit log.
func (s *ingestService) EventByCode(code string) (*dto.EventResponse, error) {
	event, err := s.eventRepo.FindByCode(code)
	if err != nil {
		return nil, err
	}
	resp := dto.EventResponse{
		ID:          event.ID,
		EventName:   event.EventName,
		Description: event.Description,
		Status:      event.Status,
	}
	if event.EventCode != nil {
		resp.EventCode = *event.EventCode
	}
	return &resp, nil
}

func (s *ingestService) SyncLogs(userID *int64, limit int) ([]dto.SyncLogResponse, error) {
	logs, err := s.syncLogRepo.List(userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]dto.SyncLogResponse, len(logs))
	for i, entry := range logs {
		if err := copier.Copy(&out[i], &entry); err != nil {
			return nil, err
		}
		out[i].ReceivedAt = entry.ReceivedAt.UTC().Format(time.RFC3339)
	}
	return out, nil
}
