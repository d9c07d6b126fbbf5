package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lyzr/edgesync/common/models"
	"github.com/lyzr/edgesync/common/queue"
)

// Logger interface for logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// Router receives decoded notifications
type Router interface {
	Route(ctx context.Context, tenantID uuid.UUID, n *models.EntityChangeNotification)
	RouteToAllEdges(ctx context.Context, tenantID uuid.UUID, n *models.EntityChangeNotification)
}

// BroadcastPolicy selects notifications that go to every edge of the tenant
type BroadcastPolicy interface {
	Matches(n *models.EntityChangeNotification) (bool, error)
}

// DurationRecorder records how long an operation took
type DurationRecorder interface {
	RecordDuration(operation string, start time.Time)
}

// Publisher puts notifications on the intake topic
type Publisher struct {
	queue queue.Queue
	topic string
}

// NewPublisher creates a publisher for topic
func NewPublisher(q queue.Queue, topic string) *Publisher {
	return &Publisher{queue: q, topic: topic}
}

// Publish encodes the notification and enqueues it keyed by tenant
func (p *Publisher) Publish(ctx context.Context, n *models.EntityChangeNotification) error {
	data, err := json.Marshal(models.NewEdgeNotificationMsg(n))
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := p.queue.Publish(ctx, p.topic, n.TenantID.String(), data); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Consumer reads notifications from the intake topic and hands them to the router
type Consumer struct {
	queue  queue.Queue
	topic  string
	router Router
	policy BroadcastPolicy
	timer  DurationRecorder
	logger Logger
}

// ConsumerOpts contains options for creating a consumer
type ConsumerOpts struct {
	Queue  queue.Queue
	Topic  string
	Router Router

	// Optional. Without a policy every notification goes through Route.
	Policy BroadcastPolicy

	// Optional
	Telemetry DurationRecorder

	Logger Logger
}

// NewConsumer creates an intake consumer
func NewConsumer(opts *ConsumerOpts) *Consumer {
	return &Consumer{
		queue:  opts.Queue,
		topic:  opts.Topic,
		router: opts.Router,
		policy: opts.Policy,
		timer:  opts.Telemetry,
		logger: opts.Logger,
	}
}

// Start subscribes to the intake topic. Delivery stops when ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.queue.Subscribe(ctx, c.topic, c.Handle); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", c.topic, err)
	}
	c.logger.Info("intake consumer started", "topic", c.topic)
	return nil
}

// Handle decodes one queued notification and routes it. Decode errors are
// returned to the queue, which logs them; the message is not retried.
func (c *Consumer) Handle(ctx context.Context, key string, value []byte) error {
	if c.timer != nil {
		defer c.timer.RecordDuration("dispatch_notification", time.Now())
	}

	var msg models.EdgeNotificationMsg
	if err := json.Unmarshal(value, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal notification: %w", err)
	}

	n, err := msg.ToNotification()
	if err != nil {
		return fmt.Errorf("invalid notification: %w", err)
	}

	c.logger.Debug("notification received",
		"tenant_id", n.TenantID,
		"entity_type", n.EntityType,
		"entity_id", n.EntityID,
		"action", n.Action)

	// Routing outlives the subscription so shutdown can drain in-flight fan-out
	routeCtx := context.WithoutCancel(ctx)

	if c.broadcast(n) {
		c.router.RouteToAllEdges(routeCtx, n.TenantID, n)
		return nil
	}

	c.router.Route(routeCtx, n.TenantID, n)
	return nil
}

func (c *Consumer) broadcast(n *models.EntityChangeNotification) bool {
	if c.policy == nil {
		return false
	}

	ok, err := c.policy.Matches(n)
	if err != nil {
		c.logger.Warn("broadcast policy failed, routing by relations",
			"tenant_id", n.TenantID,
			"entity_type", n.EntityType,
			"action", n.Action,
			"error", err)
		return false
	}
	return ok
}
