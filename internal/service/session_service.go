package service

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tdhoang/Talaria/internal/model"
	"github.com/tdhoang/Talaria/internal/repository"
)

// SessionService is the candidate-side write path: it records test activity
// in the local durable store and enqueues the matching outbound sync entries.
// All writes commit before the queue entry exists, so the worker never sees
// an item whose backing data is missing.
type SessionService interface {
	StartSession(sessionID string, eventID, userID int64, eventCode *string) (string, error)
	RecordAnswer(sessionID string, questionID int64, answer *string) (uint, error)
	FinishSession(sessionID string) error
	AttachRecording(sessionID, recordingType, filePath string, fileSize int64, duration *int64) error
}

type sessionService struct {
	store repository.StoreRepository
}

func NewSessionService(store repository.StoreRepository) SessionService {
	return &sessionService{store: store}
}

// StartSession creates a local session. When sessionID is empty a UUID is
// generated; a caller-supplied id that already exists is a conflict.
func (s *sessionService) StartSession(sessionID string, eventID, userID int64, eventCode *string) (string, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if _, err := s.store.CreateSession(sessionID, eventID, userID, eventCode); err != nil {
		return "", err
	}
	log.Info().Str("sessionID", sessionID).Int64("eventID", eventID).Msg("Session started")
	return sessionID, nil
}

func (s *sessionService) RecordAnswer(sessionID string, questionID int64, answer *string) (uint, error) {
	if _, err := s.store.Session(sessionID); err != nil {
		return 0, err
	}
	return s.store.SaveAnswer(sessionID, questionID, answer)
}

// FinishSession marks the session completed and enqueues its test result.
// The queue payload is a snapshot for inspection only; the worker rebuilds
// the authoritative answer set from the answer table at send time.
func (s *sessionService) FinishSession(sessionID string) error {
	if _, err := s.store.Session(sessionID); err != nil {
		return err
	}
	if err := s.store.CompleteSession(sessionID); err != nil {
		return err
	}

	answers, err := s.store.LatestAnswers(sessionID)
	if err != nil {
		return err
	}
	snapshot, err := json.Marshal(map[string]interface{}{"answer_count": len(answers)})
	if err != nil {
		return fmt.Errorf("serialize queue payload: %w", err)
	}

	if _, err := s.store.Enqueue(model.DataTypeTestResult, sessionID, string(snapshot), model.PriorityTestResult); err != nil {
		return err
	}
	log.Info().Str("sessionID", sessionID).Int("answers", len(answers)).Msg("Session completed and queued for sync")
	return nil
}

// AttachRecording stores a capture-file descriptor and enqueues its upload at
// recording priority.
func (s *sessionService) AttachRecording(sessionID, recordingType, filePath string, fileSize int64, duration *int64) error {
	if _, err := s.store.Session(sessionID); err != nil {
		return err
	}
	if _, err := s.store.SaveRecording(sessionID, recordingType, filePath, fileSize, duration); err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]string{"recording_type": recordingType})
	if err != nil {
		return fmt.Errorf("serialize queue payload: %w", err)
	}
	if _, err := s.store.Enqueue(model.DataTypeRecording, sessionID, string(payload), model.PriorityRecording); err != nil {
		return err
	}
	log.Info().Str("sessionID", sessionID).Str("type", recordingType).Msg("Recording queued for upload")
	return nil
}
