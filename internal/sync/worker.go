package sync

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	stdsync "sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tdhoang/Talaria/internal/dto"
	"github.com/tdhoang/Talaria/internal/model"
	"github.com/tdhoang/Talaria/internal/repository"
)

// Worker drains the sync queue on a fixed cadence. It is the only writer of
// queue outcome state. Items inside a cycle are processed sequentially, and a
// new cycle never starts while a previous one is still draining, so the same
// item is never sent twice concurrently.
type Worker struct {
	store    repository.StoreRepository
	client   *Client
	interval time.Duration
	batch    int

	cycleMu stdsync.Mutex
	trigger chan struct{}

	errMu   stdsync.RWMutex
	lastErr string
}

func NewWorker(store repository.StoreRepository, client *Client, interval time.Duration, batch int) *Worker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batch <= 0 {
		batch = 10
	}
	return &Worker{
		store:    store,
		client:   client,
		interval: interval,
		batch:    batch,
		trigger:  make(chan struct{}, 1),
	}
}

// Run blocks until ctx is cancelled. Shutdown is checked between cycles; an
// in-flight cycle is allowed to finish so no item is abandoned mid-send.
func (w *Worker) Run(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Int("batch", w.batch).Msg("Sync worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Sync worker stopping")
			return
		case <-ticker.C:
			w.runCycle(ctx)
		case <-w.trigger:
			w.runCycle(ctx)
		}
	}
}

// SyncNow requests an immediate cycle. Non-blocking; a trigger arriving while
// one is already queued is folded into it.
func (w *Worker) SyncNow() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Status reports the queue state for the control API.
func (w *Worker) Status() (pending int64, dead int, lastErr string) {
	pending, err := w.store.CountPending()
	if err != nil {
		log.Error().Err(err).Msg("Failed to count pending sync items")
	}
	deadItems, err := w.store.DeadItems()
	if err != nil {
		log.Error().Err(err).Msg("Failed to list dead sync items")
	}
	w.errMu.RLock()
	lastErr = w.lastErr
	w.errMu.RUnlock()
	return pending, len(deadItems), lastErr
}

func (w *Worker) setLastError(msg string) {
	w.errMu.Lock()
	w.lastErr = msg
	w.errMu.Unlock()
}

// runCycle fetches one batch and processes it sequentially. An error from one
// item never aborts the cycle for the others; each failure is converted into
// an attempt increment on that item alone.
func (w *Worker) runCycle(ctx context.Context) {
	if !w.cycleMu.TryLock() {
		return // previous cycle still draining
	}
	defer w.cycleMu.Unlock()

	items, err := w.store.FetchPending(w.batch)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch pending sync items")
		w.setLastError(err.Error())
		return
	}
	if len(items) == 0 {
		return
	}
	log.Info().Int("count", len(items)).Msg("Draining sync queue")

	// Detached from shutdown: a cancelled worker still lets the in-flight
	// cycle finish. The client timeout bounds each call regardless.
	sendCtx := context.WithoutCancel(ctx)

	for _, item := range items {
		if err := w.processItem(sendCtx, item); err != nil {
			w.setLastError(err.Error())

			var srvErr *ServerError
			var serErr *SerializationError
			switch {
			case errors.As(err, &srvErr) && !srvErr.Retryable():
				// Payload defect; don't burn the retry budget on it.
				log.Error().Err(err).Uint("queueID", item.ID).Msg("Non-retryable rejection, marking item dead")
				if dbErr := w.store.MarkDead(item.ID, err.Error()); dbErr != nil {
					log.Error().Err(dbErr).Uint("queueID", item.ID).Msg("Failed to mark item dead")
				}
			case errors.As(err, &serErr):
				log.Error().Err(err).Uint("queueID", item.ID).Msg("Serialization defect, marking item dead")
				if dbErr := w.store.MarkDead(item.ID, err.Error()); dbErr != nil {
					log.Error().Err(dbErr).Uint("queueID", item.ID).Msg("Failed to mark item dead")
				}
			default:
				log.Warn().Err(err).Uint("queueID", item.ID).Int("attempts", item.SyncAttempts+1).Msg("Sync attempt failed")
				if dbErr := w.store.IncrementAttempt(item.ID, err.Error()); dbErr != nil {
					log.Error().Err(dbErr).Uint("queueID", item.ID).Msg("Failed to increment attempt counter")
				}
			}
			continue
		}

		if err := w.store.MarkSynced(item.ID); err != nil {
			log.Error().Err(err).Uint("queueID", item.ID).Msg("Failed to mark item synced")
			continue
		}
		if err := w.store.CleanupSession(item.SessionID); err != nil {
			// The item is already synced; cleanup will be retried by the next
			// successful item for this session, or manually.
			log.Error().Err(err).Str("sessionID", item.SessionID).Msg("Failed to clean up synced session data")
		}
		w.setLastError("")
	}
}

func (w *Worker) processItem(ctx context.Context, item model.SyncQueueItem) error {
	log.Debug().Uint("queueID", item.ID).Str("dataType", item.DataType).Str("sessionID", item.SessionID).Msg("Processing sync item")

	switch item.DataType {
	case model.DataTypeTestResult:
		return w.syncTestResult(ctx, item.SessionID)
	case model.DataTypeRecording:
		return w.syncRecording(ctx, item)
	default:
		return &SerializationError{Err: errors.New("unknown data type " + item.DataType)}
	}
}

// syncTestResult rebuilds the payload from the answer table, not from the
// queue payload: the queue entry may predate answer corrections, the Answer
// rows are the canonical source.
func (w *Worker) syncTestResult(ctx context.Context, sessionID string) error {
	session, err := w.store.Session(sessionID)
	if err != nil {
		return &DatabaseError{Err: err}
	}

	answers, err := w.store.LatestAnswers(sessionID)
	if err != nil {
		return &DatabaseError{Err: err}
	}

	answerData := make([]dto.AnswerData, 0, len(answers))
	for _, a := range answers {
		answerData = append(answerData, dto.AnswerData{
			QuestionID: a.QuestionID,
			Answer:     a.Answer,
			AnsweredAt: a.AnsweredAt.UTC().Format(time.RFC3339),
		})
	}

	completedAt := time.Now().UTC().Format(time.RFC3339)
	if session.CompletedAt != nil {
		completedAt = session.CompletedAt.UTC().Format(time.RFC3339)
	}

	payload := dto.TestResultPayload{
		SessionID:   sessionID,
		EventID:     session.EventID,
		UserID:      session.UserID,
		Answers:     answerData,
		CompletedAt: completedAt,
		Checksum:    PayloadChecksum(sessionID, answerData),
	}

	resultID, err := w.client.SubmitTestResult(ctx, payload)
	if err != nil {
		return err
	}
	log.Info().Str("sessionID", sessionID).Int64("resultID", resultID).Msg("Test result synced")
	return nil
}

// syncRecording uploads every not-yet-uploaded recording of the item's type,
// then deletes the local binary. The descriptor row goes with the session
// cleanup once the queue item is marked synced.
func (w *Worker) syncRecording(ctx context.Context, item model.SyncQueueItem) error {
	recordingType := model.RecordingCamera
	var params struct {
		RecordingType string `json:"recording_type"`
	}
	if err := json.Unmarshal([]byte(item.Payload), &params); err == nil && params.RecordingType != "" {
		recordingType = params.RecordingType
	}

	recordings, err := w.store.PendingRecordings(item.SessionID)
	if err != nil {
		return &DatabaseError{Err: err}
	}

	for _, rec := range recordings {
		if rec.RecordingType != recordingType {
			continue
		}
		if err := w.client.UploadRecording(ctx, item.SessionID, recordingType, rec.FilePath); err != nil {
			return err
		}
		if err := w.store.MarkRecordingUploaded(item.SessionID, recordingType); err != nil {
			return &DatabaseError{Err: err}
		}
		if err := os.Remove(rec.FilePath); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", rec.FilePath).Msg("Failed to delete uploaded recording file")
		}
		log.Info().Str("sessionID", item.SessionID).Str("type", recordingType).Msg("Recording synced")
	}
	return nil
}
