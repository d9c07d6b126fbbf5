package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lyzr/edgesync/cmd/edge-sync/emitter"
	"github.com/redis/go-redis/v9"
)

// Frame is the JSON pushed to an edge when a new event is stored for it
type Frame struct {
	Type    string `json:"type"`
	EdgeID  string `json:"edge_id"`
	EventID string `json:"event_id"`
}

const frameTypeEdgeEvent = "edge_event"

// Publisher is where decoded signals are delivered
type Publisher interface {
	Publish(edgeID uuid.UUID, data []byte) bool
}

// RedisSubscriber listens to the per-edge wake-up channels and forwards them
type RedisSubscriber struct {
	redis  *redis.Client
	hub    Publisher
	logger Logger
}

// NewRedisSubscriber creates a new RedisSubscriber instance
func NewRedisSubscriber(redisClient *redis.Client, hub Publisher, logger Logger) *RedisSubscriber {
	return &RedisSubscriber{
		redis:  redisClient,
		hub:    hub,
		logger: logger,
	}
}

// Start subscribes and blocks until ctx is done
func (s *RedisSubscriber) Start(ctx context.Context) error {
	pattern := emitter.SignalChannelPrefix + "*"
	pubsub := s.redis.PSubscribe(ctx, pattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", pattern, err)
	}
	s.logger.Info("edge signal subscriber started", "pattern", pattern)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("edge signal subscriber stopping")
			return nil

		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.handle(msg.Channel, msg.Payload)
		}
	}
}

func (s *RedisSubscriber) handle(channel, payload string) {
	edgeID, err := edgeIDFromChannel(channel)
	if err != nil {
		s.logger.Warn("ignoring signal on unexpected channel", "channel", channel, "error", err)
		return
	}

	data, err := json.Marshal(Frame{Type: frameTypeEdgeEvent, EdgeID: edgeID.String(), EventID: payload})
	if err != nil {
		s.logger.Error("failed to encode edge frame", "edge_id", edgeID, "error", err)
		return
	}

	s.hub.Publish(edgeID, data)
}

// edgeIDFromChannel parses "edge_events:<uuid>"
func edgeIDFromChannel(channel string) (uuid.UUID, error) {
	raw, ok := strings.CutPrefix(channel, emitter.SignalChannelPrefix)
	if !ok {
		return uuid.Nil, fmt.Errorf("missing prefix %q", emitter.SignalChannelPrefix)
	}
	return uuid.Parse(raw)
}
