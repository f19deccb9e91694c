package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tdhoang/Talaria/internal/dto"
	"github.com/tdhoang/Talaria/internal/model"
	"github.com/tdhoang/Talaria/internal/repository"
)

func newWorkerStore(t *testing.T) repository.StoreRepository {
	t.Helper()
	dsn := fmt.Sprintf("file:worker_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.LocalSession{},
		&model.LocalAnswer{},
		&model.LocalRecording{},
		&model.SyncQueueItem{},
		&model.Setting{},
	))
	return repository.NewStoreRepository(db, 3)
}

func completedSession(t *testing.T, store repository.StoreRepository, sessionID string, answers map[int64]string) uint {
	t.Helper()
	_, err := store.CreateSession(sessionID, 1, 1, nil)
	require.NoError(t, err)
	for qid, ans := range answers {
		a := ans
		_, err := store.SaveAnswer(sessionID, qid, &a)
		require.NoError(t, err)
	}
	require.NoError(t, store.CompleteSession(sessionID))
	queueID, err := store.Enqueue(model.DataTypeTestResult, sessionID, `{"answer_count":1}`, model.PriorityTestResult)
	require.NoError(t, err)
	return queueID
}

func TestWorkerSyncsCompletedSession(t *testing.T) {
	store := newWorkerStore(t)
	completedSession(t, store, "s1", map[int64]string{1: "A"})

	var received dto.TestResultPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/test-results", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": true, "message": "ok", "result_id": 42}`))
	}))
	defer srv.Close()

	worker := NewWorker(store, NewClient(srv.URL, 0), 0, 0)
	worker.runCycle(context.Background())

	assert.Equal(t, "s1", received.SessionID)
	require.Len(t, received.Answers, 1)
	assert.NotEmpty(t, received.Checksum)

	// Queue item synced and removed, answers cleaned up, session advanced.
	pending, err := store.FetchPending(10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	session, err := store.Session("s1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionSynced, session.Status)

	answers, err := store.SessionAnswers("s1")
	require.NoError(t, err)
	assert.Empty(t, answers)

	// The synced item was deleted by cleanup, so it is not dead either.
	dead, err := store.DeadItems()
	require.NoError(t, err)
	assert.Empty(t, dead)
}

func TestWorkerSendsLatestAnswerSnapshot(t *testing.T) {
	store := newWorkerStore(t)
	_, err := store.CreateSession("s1", 1, 1, nil)
	require.NoError(t, err)
	a := "A"
	b := "B"
	corrected := "B-corrected"
	_, err = store.SaveAnswer("s1", 1, &a)
	require.NoError(t, err)
	_, err = store.SaveAnswer("s1", 2, &b)
	require.NoError(t, err)
	_, err = store.SaveAnswer("s1", 2, &corrected)
	require.NoError(t, err)
	require.NoError(t, store.CompleteSession("s1"))
	_, err = store.Enqueue(model.DataTypeTestResult, "s1", "{}", model.PriorityTestResult)
	require.NoError(t, err)

	var received dto.TestResultPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_, _ = w.Write([]byte(`{"success": true, "message": "ok", "result_id": 1}`))
	}))
	defer srv.Close()

	worker := NewWorker(store, NewClient(srv.URL, 0), 0, 0)
	worker.runCycle(context.Background())

	require.Len(t, received.Answers, 2, "one answer per distinct question")
	byQuestion := make(map[int64]string)
	for _, ans := range received.Answers {
		require.NotNil(t, ans.Answer)
		byQuestion[ans.QuestionID] = *ans.Answer
	}
	assert.Equal(t, "A", byQuestion[1])
	assert.Equal(t, "B-corrected", byQuestion[2])
}

func TestWorkerExhaustsRetryBudgetOnServerFailure(t *testing.T) {
	store := newWorkerStore(t)
	completedSession(t, store, "s1", map[int64]string{1: "A"})

	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	worker := NewWorker(store, NewClient(srv.URL, 0), 0, 0)
	for i := 0; i < 4; i++ {
		worker.runCycle(context.Background())
	}

	// Three attempts, then the item drops out of rotation.
	assert.Equal(t, 3, requests)

	pending, err := store.FetchPending(10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	dead, err := store.DeadItems()
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, 3, dead[0].SyncAttempts)
	require.NotNil(t, dead[0].LastError)
	assert.Contains(t, *dead[0].LastError, "500")

	// Local data is untouched until a confirmed sync.
	session, err := store.Session("s1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, session.Status)
	answers, err := store.SessionAnswers("s1")
	require.NoError(t, err)
	assert.Len(t, answers, 1)

	_, deadCount, lastErr := worker.Status()
	assert.Equal(t, 1, deadCount)
	assert.Contains(t, lastErr, "500")
}

func TestWorkerMarksRejectedItemDeadImmediately(t *testing.T) {
	store := newWorkerStore(t)
	completedSession(t, store, "s1", map[int64]string{1: "A"})

	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	worker := NewWorker(store, NewClient(srv.URL, 0), 0, 0)
	worker.runCycle(context.Background())
	worker.runCycle(context.Background())

	// A payload rejection never earns a second attempt.
	assert.Equal(t, 1, requests)

	dead, err := store.DeadItems()
	require.NoError(t, err)
	require.Len(t, dead, 1)
}

func TestWorkerRetriesAfterNetworkFailure(t *testing.T) {
	store := newWorkerStore(t)
	completedSession(t, store, "s1", map[int64]string{1: "A"})

	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		_, _ = w.Write([]byte(`{"success": true, "message": "ok", "result_id": 7}`))
	}))
	defer srv.Close()

	// First cycle against an unreachable endpoint, then recover.
	client := NewClient("http://127.0.0.1:1", 0)
	worker := NewWorker(store, client, 0, 0)
	worker.runCycle(context.Background())

	pending, err := store.FetchPending(10)
	require.NoError(t, err)
	require.Len(t, pending, 1, "item stays pending after a transport failure")
	assert.Equal(t, 1, pending[0].SyncAttempts)

	client.SetBaseURL(srv.URL)
	worker.runCycle(context.Background())

	assert.Equal(t, 1, requests)
	session, err := store.Session("s1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionSynced, session.Status)
}

func TestWorkerProcessesByPriority(t *testing.T) {
	store := newWorkerStore(t)
	_, err := store.CreateSession("s1", 1, 1, nil)
	require.NoError(t, err)
	require.NoError(t, store.CompleteSession("s1"))

	// Recording enqueued first, test result second; the result must go out first.
	_, err = store.Enqueue(model.DataTypeRecording, "s1", `{"recording_type":"camera"}`, model.PriorityRecording)
	require.NoError(t, err)
	_, err = store.Enqueue(model.DataTypeTestResult, "s1", "{}", model.PriorityTestResult)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cam.webm")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	_, err = store.SaveRecording("s1", model.RecordingCamera, path, 1, nil)
	require.NoError(t, err)

	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = w.Write([]byte(`{"success": true, "message": "ok", "result_id": 1}`))
	}))
	defer srv.Close()

	worker := NewWorker(store, NewClient(srv.URL, 0), 0, 0)
	worker.runCycle(context.Background())

	require.Len(t, paths, 2)
	assert.Equal(t, "/api/test-results", paths[0])
	assert.Equal(t, "/api/recordings", paths[1])
}

func TestWorkerUploadsRecordingAndDeletesFile(t *testing.T) {
	store := newWorkerStore(t)
	_, err := store.CreateSession("s1", 1, 1, nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cam.webm")
	require.NoError(t, os.WriteFile(path, []byte("webm-bytes"), 0o644))
	_, err = store.SaveRecording("s1", model.RecordingCamera, path, 10, nil)
	require.NoError(t, err)
	_, err = store.Enqueue(model.DataTypeRecording, "s1", `{"recording_type":"camera"}`, model.PriorityRecording)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/recordings", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1 << 20))
		assert.Equal(t, "s1", r.FormValue("session_id"))
		assert.Equal(t, "camera", r.FormValue("recording_type"))
		_, _ = w.Write([]byte(`{"success": true, "message": "uploaded"}`))
	}))
	defer srv.Close()

	worker := NewWorker(store, NewClient(srv.URL, 0), 0, 0)
	worker.runCycle(context.Background())

	// Binary gone, descriptor cleaned up with the queue item.
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	pending, err := store.PendingRecordings("s1")
	require.NoError(t, err)
	assert.Empty(t, pending)

	items, err := store.FetchPending(10)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestWorkerSyncNowCoalesces(t *testing.T) {
	store := newWorkerStore(t)
	worker := NewWorker(store, NewClient("http://127.0.0.1:1", 0), 0, 0)

	// Filling the trigger twice must not block.
	worker.SyncNow()
	worker.SyncNow()

	select {
	case <-worker.trigger:
	default:
		t.Fatal("expected a queued trigger")
	}
	select {
	case <-worker.trigger:
		t.Fatal("triggers must coalesce into one")
	default:
	}
}
