package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

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

func TestMemoryQueue_PublishSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewMemoryQueue(&testLogger{t: t})
	defer q.Close()

	var mu sync.Mutex
	received := map[string]string{}
	done := make(chan struct{}, 2)

	require.NoError(t, q.Subscribe(ctx, "edge.notifications", func(ctx context.Context, key string, value []byte) error {
		mu.Lock()
		received[key] = string(value)
		mu.Unlock()
		done <- struct{}{}
		return nil
	}))

	require.NoError(t, q.Publish(ctx, "edge.notifications", "a", []byte("one")))
	require.NoError(t, q.Publish(ctx, "edge.notifications", "b", []byte("two")))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for delivery")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]string{"a": "one", "b": "two"}, received)
}

func TestMemoryQueue_HandlerErrorDoesNotStopSubscription(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewMemoryQueue(&testLogger{t: t})
	defer q.Close()
	calls := make(chan string, 2)

	require.NoError(t, q.Subscribe(ctx, "t", func(ctx context.Context, key string, value []byte) error {
		calls <- key
		if key == "bad" {
			return errors.New("boom")
		}
		return nil
	}))

	require.NoError(t, q.Publish(ctx, "t", "bad", nil))
	require.NoError(t, q.Publish(ctx, "t", "good", nil))

	for _, want := range []string{"bad", "good"} {
		select {
		case got := <-calls:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestMemoryQueue_FullTopic(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(&testLogger{t: t})

	for i := 0; i < memoryTopicBuffer; i++ {
		require.NoError(t, q.Publish(ctx, "t", "k", nil))
	}
	assert.ErrorIs(t, q.Publish(ctx, "t", "k", nil), ErrQueueFull)
}

func TestMemoryQueue_Close(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(&testLogger{t: t})

	require.NoError(t, q.Subscribe(ctx, "t", func(ctx context.Context, key string, value []byte) error {
		return nil
	}))
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.Publish(ctx, "t", "k", nil), ErrQueueClosed)
	assert.ErrorIs(t, q.Subscribe(ctx, "t", nil), ErrQueueClosed)
}
