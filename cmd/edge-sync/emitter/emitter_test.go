package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lyzr/edgesync/common/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLogger struct {
	t *testing.T
}

func (l *testLogger) Info(msg string, keysAndValues ...interface{}) {
	l.t.Logf("[INFO] %s %v", msg, keysAndValues)
}

func (l *testLogger) Error(msg string, keysAndValues ...interface{}) {
	l.t.Logf("[ERROR] %s %v", msg, keysAndValues)
}

func (l *testLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.t.Logf("[WARN] %s %v", msg, keysAndValues)
}

func (l *testLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.t.Logf("[DEBUG] %s %v", msg, keysAndValues)
}

type memoryStore struct {
	mu     sync.Mutex
	events []*models.EdgeEvent
	err    error
}

func (s *memoryStore) Save(ctx context.Context, event *models.EdgeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

type recordingSignaler struct {
	channels []string
	messages []string
	err      error
}

func (s *recordingSignaler) PublishEvent(ctx context.Context, channel string, message string) error {
	s.channels = append(s.channels, channel)
	s.messages = append(s.messages, message)
	return s.err
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestEmit_SavesEventWithIDAndTime(t *testing.T) {
	store := &memoryStore{}
	signaler := &recordingSignaler{}
	e := New(&Opts{Store: store, Signaler: signaler, Logger: &testLogger{t: t}, Clock: fixedClock})

	draft := Draft{
		TenantID: uuid.New(),
		EdgeID:   uuid.New(),
		Type:     models.EdgeEventTypeDevice,
		Action:   models.ActionUpdated,
		EntityID: uuid.New(),
	}

	event, err := e.Emit(context.Background(), draft)
	require.NoError(t, err)

	require.Len(t, store.events, 1)
	saved := store.events[0]
	assert.NotEqual(t, uuid.Nil, saved.ID)
	assert.Equal(t, uuid.Version(7), saved.ID.Version())
	assert.Equal(t, fixedClock(), saved.CreatedTime)
	assert.Equal(t, draft.TenantID, saved.TenantID)
	assert.Equal(t, draft.EdgeID, saved.EdgeID)
	assert.Equal(t, draft.Type, saved.Type)
	assert.Equal(t, draft.Action, saved.Action)
	assert.Equal(t, draft.EntityID, saved.EntityID)
	assert.Nil(t, saved.Body)

	assert.Equal(t, saved.ID, event.ID)
	assert.Equal(t, []string{SignalChannel(draft.EdgeID)}, signaler.channels)
	assert.Equal(t, []string{saved.ID.String()}, signaler.messages)
}

func TestEmit_StoredEventIsIsolatedFromCaller(t *testing.T) {
	store := &memoryStore{}
	e := New(&Opts{Store: store, Logger: &testLogger{t: t}})

	body := json.RawMessage(`{"conflictName":"foo"}`)
	event, err := e.Emit(context.Background(), Draft{
		TenantID: uuid.New(),
		EdgeID:   uuid.New(),
		Type:     models.EdgeEventTypeDevice,
		Action:   models.ActionEntityMergeRequest,
		EntityID: uuid.New(),
		Body:     body,
	})
	require.NoError(t, err)

	body[2] = 'X'
	event.Body[2] = 'Y'
	event.Action = models.ActionDeleted

	saved := store.events[0]
	assert.JSONEq(t, `{"conflictName":"foo"}`, string(saved.Body))
	assert.Equal(t, models.ActionEntityMergeRequest, saved.Action)
}

func TestEmit_StoreFailure(t *testing.T) {
	store := &memoryStore{err: errors.New("db down")}
	signaler := &recordingSignaler{}
	e := New(&Opts{Store: store, Signaler: signaler, Logger: &testLogger{t: t}})

	_, err := e.Emit(context.Background(), Draft{TenantID: uuid.New(), EdgeID: uuid.New()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Empty(t, signaler.channels, "no signal for an event that was not saved")
}

func TestEmit_SignalFailureIsNotAnError(t *testing.T) {
	store := &memoryStore{}
	signaler := &recordingSignaler{err: errors.New("redis down")}
	e := New(&Opts{Store: store, Signaler: signaler, Logger: &testLogger{t: t}})

	_, err := e.Emit(context.Background(), Draft{TenantID: uuid.New(), EdgeID: uuid.New()})
	require.NoError(t, err)
	assert.Len(t, store.events, 1)
}
