package queue

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	rediscommon "github.com/lyzr/edgesync/common/redis"
	"github.com/redis/go-redis/v9"
)

const (
	streamKeyField   = "key"
	streamValueField = "value"
)

// RedisStreamQueue carries messages on Redis streams read through a consumer group.
// Entries are acknowledged after the handler returns, whether or not it failed;
// the handler is responsible for its own error reporting.
type RedisStreamQueue struct {
	client       *rediscommon.Client
	group        string
	consumer     string
	blockTimeout time.Duration
	log          Logger

	wg sync.WaitGroup
}

// RedisStreamQueueOpts configures a RedisStreamQueue
type RedisStreamQueueOpts struct {
	Client       *rediscommon.Client
	Group        string
	BlockTimeout time.Duration
	Logger       Logger
}

// NewRedisStreamQueue creates a stream-backed queue
func NewRedisStreamQueue(opts *RedisStreamQueueOpts) *RedisStreamQueue {
	host, err := os.Hostname()
	if err != nil {
		host = "edge-sync"
	}
	block := opts.BlockTimeout
	if block <= 0 {
		block = 5 * time.Second
	}
	return &RedisStreamQueue{
		client:       opts.Client,
		group:        opts.Group,
		consumer:     fmt.Sprintf("%s_%d", host, time.Now().UnixNano()),
		blockTimeout: block,
		log:          opts.Logger,
	}
}

// Publish appends the message to the topic's stream
func (q *RedisStreamQueue) Publish(ctx context.Context, topic string, key string, message []byte) error {
	_, err := q.client.AddToStream(ctx, topic, map[string]interface{}{
		streamKeyField:   key,
		streamValueField: string(message),
	})
	return err
}

// Subscribe creates the consumer group if needed and starts reading in the background
func (q *RedisStreamQueue) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	if err := q.client.CreateStreamGroup(ctx, topic, q.group); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	q.log.Info("subscribing to stream",
		"stream", topic,
		"consumer_group", q.group,
		"consumer_name", q.consumer)

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case <-ctx.Done():
				q.log.Info("stream subscription cancelled", "stream", topic)
				return
			default:
			}

			streams, err := q.client.ReadFromStreamGroup(ctx, q.group, q.consumer, topic, 10, q.blockTimeout)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				// Back off on error
				time.Sleep(time.Second)
				continue
			}

			for _, stream := range streams {
				for _, message := range stream.Messages {
					q.handle(ctx, topic, message, handler)
				}
			}
		}
	}()

	return nil
}

func (q *RedisStreamQueue) handle(ctx context.Context, topic string, message redis.XMessage, handler MessageHandler) {
	key, _ := message.Values[streamKeyField].(string)
	value, ok := message.Values[streamValueField].(string)
	if !ok {
		q.log.Error("stream message missing value field", "stream", topic, "message_id", message.ID)
	} else if err := handler(ctx, key, []byte(value)); err != nil {
		q.log.Error("message handler error", "stream", topic, "message_id", message.ID, "key", key, "error", err)
	}

	if err := q.client.AckStreamMessage(ctx, topic, q.group, message.ID); err != nil {
		q.log.Warn("failed to ack stream message", "stream", topic, "message_id", message.ID, "error", err)
	}
}

// Close waits for subscriber goroutines to exit. Cancel the subscribe
// context first; the Redis connection itself is owned by the caller.
func (q *RedisStreamQueue) Close() error {
	q.wg.Wait()
	return nil
}
