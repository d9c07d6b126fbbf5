package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/lyzr/edgesync/cmd/edge-sync/middleware"
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

// NotificationPublisher enqueues notifications for routing
type NotificationPublisher interface {
	Publish(ctx context.Context, n *models.EntityChangeNotification) error
}

// NotificationHandler accepts entity change notifications over HTTP
type NotificationHandler struct {
	publisher NotificationPublisher
	logger    Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(publisher NotificationPublisher, logger Logger) *NotificationHandler {
	return &NotificationHandler{
		publisher: publisher,
		logger:    logger,
	}
}

// NotificationRequest is the body of a notification submission
type NotificationRequest struct {
	Type     string          `json:"type"`
	Action   string          `json:"action"`
	EntityID string          `json:"entity_id"`
	EdgeID   string          `json:"edge_id,omitempty"`
	Body     json.RawMessage `json:"body,omitempty"`
}

// SubmitNotification validates and enqueues a notification
// POST /api/v1/tenants/:tenantId/notifications
func (h *NotificationHandler) SubmitNotification(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := middleware.GetTenantID(c)

	var req NotificationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}

	n, err := req.toNotification(tenantID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": err.Error(),
		})
	}

	if err := h.publisher.Publish(ctx, n); err != nil {
		h.logger.Error("failed to enqueue notification",
			"tenant_id", tenantID,
			"entity_type", n.EntityType,
			"entity_id", n.EntityID,
			"action", n.Action,
			"error", err)

		status := http.StatusInternalServerError
		if errors.Is(err, queue.ErrQueueFull) || errors.Is(err, queue.ErrQueueClosed) {
			status = http.StatusServiceUnavailable
		}
		return c.JSON(status, map[string]interface{}{
			"error": "failed to enqueue notification",
		})
	}

	h.logger.Info("notification enqueued",
		"tenant_id", tenantID,
		"entity_type", n.EntityType,
		"entity_id", n.EntityID,
		"action", n.Action)

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"status":    "queued",
		"tenant_id": tenantID,
		"entity_id": n.EntityID,
		"action":    n.Action,
	})
}

func (r *NotificationRequest) toNotification(tenantID uuid.UUID) (*models.EntityChangeNotification, error) {
	entityType := models.EdgeEventType(r.Type)
	if !entityType.Valid() {
		return nil, errors.New("unknown entity type: " + r.Type)
	}

	action := models.EdgeEventActionType(r.Action)
	if !action.Valid() {
		return nil, errors.New("unknown action: " + r.Action)
	}

	entityID, err := uuid.Parse(r.EntityID)
	if err != nil {
		return nil, errors.New("invalid entity_id")
	}

	n := &models.EntityChangeNotification{
		TenantID:   tenantID,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Body:       r.Body,
	}

	if r.EdgeID != "" {
		edgeID, err := uuid.Parse(r.EdgeID)
		if err != nil {
			return nil, errors.New("invalid edge_id")
		}
		n.TargetEdgeID = &edgeID
	}

	return n, nil
}
