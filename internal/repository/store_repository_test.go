package repository

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tdhoang/Talaria/internal/model"
)

func newTestStore(t *testing.T) StoreRepository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
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
	return NewStoreRepository(db, 3)
}

func TestCreateSessionConflict(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateSession("s1", 1, 1, nil)
	require.NoError(t, err)

	_, err = store.CreateSession("s1", 2, 2, nil)
	assert.ErrorIs(t, err, ErrSessionExists)
}

func TestSessionLifecycle(t *testing.T) {
	store := newTestStore(t)

	code := "CODE123"
	_, err := store.CreateSession("s1", 1, 7, &code)
	require.NoError(t, err)

	session, err := store.Session("s1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionInProgress, session.Status)
	assert.Equal(t, int64(7), session.UserID)
	require.NotNil(t, session.EventCode)
	assert.Equal(t, "CODE123", *session.EventCode)

	require.NoError(t, store.CompleteSession("s1"))
	session, err = store.Session("s1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, session.Status)
	assert.NotNil(t, session.CompletedAt)

	_, err = store.Session("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetchPendingPriorityOrdering(t *testing.T) {
	store := newTestStore(t)

	// Priorities [5, 1, 5] inserted in that order must come back as
	// [1, then the two 5s in insertion order].
	first, err := store.Enqueue(model.DataTypeRecording, "s1", "{}", 5)
	require.NoError(t, err)
	urgent, err := store.Enqueue(model.DataTypeTestResult, "s1", "{}", 1)
	require.NoError(t, err)
	second, err := store.Enqueue(model.DataTypeRecording, "s2", "{}", 5)
	require.NoError(t, err)

	items, err := store.FetchPending(10)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, urgent, items[0].ID)
	assert.Equal(t, first, items[1].ID)
	assert.Equal(t, second, items[2].ID)
}

func TestFetchPendingRespectsLimit(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 5; i++ {
		_, err := store.Enqueue(model.DataTypeTestResult, fmt.Sprintf("s%d", i), "{}", 1)
		require.NoError(t, err)
	}

	items, err := store.FetchPending(3)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestRetryCeilingExcludesItem(t *testing.T) {
	store := newTestStore(t)

	id, err := store.Enqueue(model.DataTypeTestResult, "s1", "{}", 1)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.IncrementAttempt(id, "connection refused"))
	}

	items, err := store.FetchPending(10)
	require.NoError(t, err)
	assert.Empty(t, items, "exhausted item must be invisible to FetchPending")

	dead, err := store.DeadItems()
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.False(t, dead[0].Synced)
	assert.Equal(t, 3, dead[0].SyncAttempts)
	require.NotNil(t, dead[0].LastError)
	assert.Equal(t, "connection refused", *dead[0].LastError)
	assert.NotNil(t, dead[0].LastAttemptAt)
}

func TestMarkDeadTakesItemOutImmediately(t *testing.T) {
	store := newTestStore(t)

	id, err := store.Enqueue(model.DataTypeTestResult, "s1", "{}", 1)
	require.NoError(t, err)
	require.NoError(t, store.MarkDead(id, "server returned status 400"))

	items, err := store.FetchPending(10)
	require.NoError(t, err)
	assert.Empty(t, items)

	dead, err := store.DeadItems()
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, id, dead[0].ID)
}

func TestRequeueDeadItem(t *testing.T) {
	store := newTestStore(t)

	id, err := store.Enqueue(model.DataTypeTestResult, "s1", "{}", 1)
	require.NoError(t, err)
	require.NoError(t, store.MarkDead(id, "server returned status 400"))

	require.NoError(t, store.Requeue(id))

	items, err := store.FetchPending(10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 0, items[0].SyncAttempts)
	assert.Nil(t, items[0].LastError)

	// Unknown or already-synced items can't be requeued.
	assert.ErrorIs(t, store.Requeue(9999), ErrNotFound)
	require.NoError(t, store.MarkSynced(id))
	assert.ErrorIs(t, store.Requeue(id), ErrNotFound)
}

func TestMarkSyncedExcludesItem(t *testing.T) {
	store := newTestStore(t)

	id, err := store.Enqueue(model.DataTypeTestResult, "s1", "{}", 1)
	require.NoError(t, err)

	require.NoError(t, store.MarkSynced(id))
	// Second application is a no-op, not an error.
	require.NoError(t, store.MarkSynced(id))

	items, err := store.FetchPending(10)
	require.NoError(t, err)
	assert.Empty(t, items)

	count, err := store.CountPending()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestLatestAnswersCollapsesCorrections(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateSession("s1", 1, 1, nil)
	require.NoError(t, err)

	a := "A"
	b := "B"
	c := "C"
	corrected := "B-corrected"
	_, err = store.SaveAnswer("s1", 1, &a)
	require.NoError(t, err)
	_, err = store.SaveAnswer("s1", 2, &b)
	require.NoError(t, err)
	_, err = store.SaveAnswer("s1", 3, &c)
	require.NoError(t, err)
	_, err = store.SaveAnswer("s1", 2, &corrected)
	require.NoError(t, err)

	answers, err := store.LatestAnswers("s1")
	require.NoError(t, err)
	require.Len(t, answers, 3, "one entry per distinct answered question")

	byQuestion := make(map[int64]string)
	for _, ans := range answers {
		require.NotNil(t, ans.Answer)
		byQuestion[ans.QuestionID] = *ans.Answer
	}
	assert.Equal(t, "A", byQuestion[1])
	assert.Equal(t, "B-corrected", byQuestion[2])
	assert.Equal(t, "C", byQuestion[3])
}

func TestLatestAnswersKeepsSkips(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateSession("s1", 1, 1, nil)
	require.NoError(t, err)
	_, err = store.SaveAnswer("s1", 1, nil) // skipped question
	require.NoError(t, err)

	answers, err := store.LatestAnswers("s1")
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Nil(t, answers[0].Answer)
}

func TestCleanupSessionIdempotent(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateSession("s1", 1, 1, nil)
	require.NoError(t, err)
	a := "A"
	_, err = store.SaveAnswer("s1", 1, &a)
	require.NoError(t, err)
	id, err := store.Enqueue(model.DataTypeTestResult, "s1", "{}", 1)
	require.NoError(t, err)

	require.NoError(t, store.MarkSynced(id))
	require.NoError(t, store.CleanupSession("s1"))
	require.NoError(t, store.CleanupSession("s1"))

	session, err := store.Session("s1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionSynced, session.Status)

	answers, err := store.SessionAnswers("s1")
	require.NoError(t, err)
	assert.Empty(t, answers)

	items, err := store.FetchPending(10)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCleanupLeavesUnsyncedItems(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateSession("s1", 1, 1, nil)
	require.NoError(t, err)
	_, err = store.Enqueue(model.DataTypeRecording, "s1", "{}", 5)
	require.NoError(t, err)

	require.NoError(t, store.CleanupSession("s1"))

	// The pending recording item survived cleanup; only synced items go.
	items, err := store.FetchPending(10)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestRecordingLifecycle(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateSession("s1", 1, 1, nil)
	require.NoError(t, err)
	_, err = store.SaveRecording("s1", model.RecordingCamera, "/tmp/cam.webm", 1024, nil)
	require.NoError(t, err)

	pending, err := store.PendingRecordings("s1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, model.RecordingCamera, pending[0].RecordingType)

	require.NoError(t, store.MarkRecordingUploaded("s1", model.RecordingCamera))

	pending, err = store.PendingRecordings("s1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSettingsRoundTrip(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Setting(model.SettingServerURL)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.PutSetting(model.SettingServerURL, "http://192.168.1.10:8080"))
	url, err := store.Setting(model.SettingServerURL)
	require.NoError(t, err)
	assert.Equal(t, "http://192.168.1.10:8080", url)

	require.NoError(t, store.PutSetting(model.SettingServerURL, "http://192.168.1.20:8080"))
	url, err = store.Setting(model.SettingServerURL)
	require.NoError(t, err)
	assert.Equal(t, "http://192.168.1.20:8080", url)
}
