package queue

import (
	"context"
	"errors"
	"sync"
)

// Queue interface for message passing
type Queue interface {
	Publish(ctx context.Context, topic string, key string, message []byte) error
	Subscribe(ctx context.Context, topic string, handler MessageHandler) error
	Close() error
}

// MessageHandler processes messages
type MessageHandler func(ctx context.Context, key string, value []byte) error

// Logger interface for logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

var (
	// ErrQueueFull is returned by MemoryQueue when a topic buffer is full
	ErrQueueFull = errors.New("queue full")

	// ErrQueueClosed is returned after Close
	ErrQueueClosed = errors.New("queue closed")
)

const memoryTopicBuffer = 1000

// MemoryQueue is an in-process queue for local runs and tests
type MemoryQueue struct {
	topics map[string]chan *Message
	closed bool
	mu     sync.RWMutex
	wg     sync.WaitGroup
	log    Logger
}

// Message represents a queue message
type Message struct {
	Topic string
	Key   string
	Value []byte
}

// NewMemoryQueue creates a new in-memory queue
func NewMemoryQueue(log Logger) *MemoryQueue {
	return &MemoryQueue{
		topics: make(map[string]chan *Message),
		log:    log,
	}
}

func (q *MemoryQueue) topic(name string) chan *Message {
	ch, exists := q.topics[name]
	if !exists {
		ch = make(chan *Message, memoryTopicBuffer)
		q.topics[name] = ch
	}
	return ch
}

// Publish publishes a message to a topic. It never blocks: a full topic
// returns ErrQueueFull.
func (q *MemoryQueue) Publish(ctx context.Context, topic string, key string, message []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	msg := &Message{
		Topic: topic,
		Key:   key,
		Value: message,
	}

	select {
	case q.topic(topic) <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		q.log.Warn("queue full", "topic", topic, "key", key)
		return ErrQueueFull
	}
}

// Subscribe starts a goroutine delivering the topic's messages to handler
func (q *MemoryQueue) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	ch := q.topic(topic)
	q.mu.Unlock()

	q.log.Info("subscribing to topic", "topic", topic)

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case <-ctx.Done():
				q.log.Info("subscription cancelled", "topic", topic)
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if err := handler(ctx, msg.Key, msg.Value); err != nil {
					q.log.Error("message handler error", "topic", topic, "key", msg.Key, "error", err)
				}
			}
		}
	}()

	return nil
}

// Close closes every topic and waits for subscribers to drain and exit
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true

	for topic, ch := range q.topics {
		close(ch)
		q.log.Info("closed topic", "topic", topic)
	}
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}
