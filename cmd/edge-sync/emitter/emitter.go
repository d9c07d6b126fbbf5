package emitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lyzr/edgesync/common/models"
)

// Logger interface for logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// EventStore appends edge events durably
type EventStore interface {
	Save(ctx context.Context, event *models.EdgeEvent) error
}

// Signaler wakes up whoever drains an edge's queue
type Signaler interface {
	PublishEvent(ctx context.Context, channel string, message string) error
}

// Draft is the caller-supplied part of an edge event
type Draft struct {
	TenantID uuid.UUID
	EdgeID   uuid.UUID
	Type     models.EdgeEventType
	Action   models.EdgeEventActionType
	EntityID uuid.UUID
	Body     json.RawMessage
}

// Emitter appends immutable work records for single edges
type Emitter struct {
	store    EventStore
	signaler Signaler
	logger   Logger
	now      func() time.Time
}

// Opts contains options for creating an emitter
type Opts struct {
	Store EventStore

	// Optional. When nil no wake-up signal is sent.
	Signaler Signaler

	Logger Logger

	// Optional clock, defaults to time.Now
	Clock func() time.Time
}

// New creates an emitter
func New(opts *Opts) *Emitter {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Emitter{
		store:    opts.Store,
		signaler: opts.Signaler,
		logger:   opts.Logger,
		now:      now,
	}
}

// SignalChannelPrefix prefixes every per-edge wake-up channel
const SignalChannelPrefix = "edge_events:"

// SignalChannel is the pub/sub channel announcing new work for an edge
func SignalChannel(edgeID uuid.UUID) string {
	return SignalChannelPrefix + edgeID.String()
}

// Emit builds the event, stamps id and creation time, and appends it.
// The returned event is a private copy; the stored record never changes.
func (e *Emitter) Emit(ctx context.Context, draft Draft) (*models.EdgeEvent, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate edge event id: %w", err)
	}

	event := &models.EdgeEvent{
		ID:          id,
		TenantID:    draft.TenantID,
		EdgeID:      draft.EdgeID,
		Type:        draft.Type,
		Action:      draft.Action,
		EntityID:    draft.EntityID,
		Body:        cloneBody(draft.Body),
		CreatedTime: e.now().UTC(),
	}

	if err := e.store.Save(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to emit edge event: %w", err)
	}

	e.logger.Debug("edge event saved",
		"tenant_id", event.TenantID,
		"edge_id", event.EdgeID,
		"type", event.Type,
		"action", event.Action,
		"entity_id", event.EntityID,
		"event_id", event.ID)

	if e.signaler != nil {
		if err := e.signaler.PublishEvent(ctx, SignalChannel(event.EdgeID), event.ID.String()); err != nil {
			// The event is already durable; the edge picks it up on its next drain
			e.logger.Warn("failed to signal edge event",
				"edge_id", event.EdgeID,
				"event_id", event.ID,
				"error", err)
		}
	}

	saved := *event
	saved.Body = cloneBody(event.Body)
	return &saved, nil
}

func cloneBody(body json.RawMessage) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	return bytes.Clone(body)
}
