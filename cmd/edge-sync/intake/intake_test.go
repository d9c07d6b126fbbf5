package intake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lyzr/edgesync/cmd/edge-sync/policy"
	"github.com/lyzr/edgesync/common/config"
	"github.com/lyzr/edgesync/common/models"
	"github.com/lyzr/edgesync/common/queue"
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

type routed struct {
	all bool
	n   *models.EntityChangeNotification
}

type fakeRouter struct {
	calls chan routed
}

func newFakeRouter() *fakeRouter {
	return &fakeRouter{calls: make(chan routed, 10)}
}

func (r *fakeRouter) Route(ctx context.Context, tenantID uuid.UUID, n *models.EntityChangeNotification) {
	r.calls <- routed{n: n}
}

func (r *fakeRouter) RouteToAllEdges(ctx context.Context, tenantID uuid.UUID, n *models.EntityChangeNotification) {
	r.calls <- routed{all: true, n: n}
}

func (r *fakeRouter) next(t *testing.T) routed {
	select {
	case call := <-r.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for routed notification")
		return routed{}
	}
}

type failingPolicy struct{}

func (failingPolicy) Matches(n *models.EntityChangeNotification) (bool, error) {
	return false, errors.New("no such overload")
}

func newConsumer(t *testing.T, q queue.Queue, router Router, p BroadcastPolicy) *Consumer {
	return NewConsumer(&ConsumerOpts{
		Queue:  q,
		Topic:  "edge.notifications",
		Router: router,
		Policy: p,
		Logger: &testLogger{t: t},
	})
}

func TestConsumer_PublishedNotificationIsRouted(t *testing.T) {
	logger := &testLogger{t: t}
	q := queue.NewMemoryQueue(logger)
	defer q.Close()

	router := newFakeRouter()
	p, err := policy.NewBroadcast(config.DefaultBroadcastPolicy)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, newConsumer(t, q, router, p).Start(ctx))

	edgeID := uuid.New()
	sent := &models.EntityChangeNotification{
		TenantID:     uuid.New(),
		EntityType:   models.EdgeEventTypeDevice,
		EntityID:     uuid.New(),
		Action:       models.ActionDeleted,
		TargetEdgeID: &edgeID,
	}
	require.NoError(t, NewPublisher(q, "edge.notifications").Publish(ctx, sent))

	call := router.next(t)
	assert.False(t, call.all)
	assert.Equal(t, sent.TenantID, call.n.TenantID)
	assert.Equal(t, sent.EntityID, call.n.EntityID)
	assert.Equal(t, sent.Action, call.n.Action)
	require.NotNil(t, call.n.TargetEdgeID)
	assert.Equal(t, edgeID, *call.n.TargetEdgeID)
}

func TestConsumer_BroadcastPolicySelectsAllEdges(t *testing.T) {
	logger := &testLogger{t: t}
	q := queue.NewMemoryQueue(logger)
	defer q.Close()

	router := newFakeRouter()
	p, err := policy.NewBroadcast(config.DefaultBroadcastPolicy)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, newConsumer(t, q, router, p).Start(ctx))

	publisher := NewPublisher(q, "edge.notifications")
	require.NoError(t, publisher.Publish(ctx, &models.EntityChangeNotification{
		TenantID:   uuid.New(),
		EntityType: models.EdgeEventTypeWidgetsBundle,
		EntityID:   uuid.New(),
		Action:     models.ActionUpdated,
	}))

	call := router.next(t)
	assert.True(t, call.all)
	assert.Equal(t, models.EdgeEventTypeWidgetsBundle, call.n.EntityType)
}

func TestConsumer_HandleRejectsBadMessages(t *testing.T) {
	router := newFakeRouter()
	c := newConsumer(t, nil, router, nil)

	tests := []struct {
		name  string
		value string
	}{
		{"not json", `{`},
		{"bad tenant", `{"tenantId":"x","type":"DEVICE","action":"ADDED"}`},
		{"unknown type", `{"tenantId":"` + uuid.NewString() + `","type":"TOASTER","action":"ADDED"}`},
		{"unknown action", `{"tenantId":"` + uuid.NewString() + `","type":"DEVICE","action":"EXPLODED"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Handle(context.Background(), "", []byte(tt.value))
			assert.Error(t, err)
		})
	}
	assert.Empty(t, router.calls)
}

func TestConsumer_PolicyFailureFallsBackToRoute(t *testing.T) {
	router := newFakeRouter()
	c := newConsumer(t, nil, router, failingPolicy{})

	value := `{"tenantId":"` + uuid.NewString() + `","type":"WIDGETS_BUNDLE","action":"UPDATED","entityIdMSB":1,"entityIdLSB":2}`
	require.NoError(t, c.Handle(context.Background(), "", []byte(value)))

	call := router.next(t)
	assert.False(t, call.all)
	assert.Equal(t, models.UUIDFromBits(1, 2), call.n.EntityID)
}

func TestConsumer_NoPolicyAlwaysRoutes(t *testing.T) {
	router := newFakeRouter()
	c := newConsumer(t, nil, router, nil)

	value := `{"tenantId":"` + uuid.NewString() + `","type":"WIDGETS_BUNDLE","action":"UPDATED"}`
	require.NoError(t, c.Handle(context.Background(), "", []byte(value)))

	assert.False(t, router.next(t).all)
}
