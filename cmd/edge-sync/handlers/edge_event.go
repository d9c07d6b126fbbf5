package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/lyzr/edgesync/cmd/edge-sync/middleware"
	"github.com/lyzr/edgesync/common/models"
)

const maxPageSize = 1000

// EdgeEventReader reads an edge's queued events
type EdgeEventReader interface {
	FindByID(ctx context.Context, tenantID, edgeID, eventID uuid.UUID) (*models.EdgeEvent, error)
	ListByEdge(ctx context.Context, tenantID, edgeID uuid.UUID, link models.PageLink) (*models.PageData[models.EdgeEvent], error)
}

// EdgeLookup fetches an edge record
type EdgeLookup interface {
	FindByID(ctx context.Context, tenantID, edgeID uuid.UUID) (*models.Edge, error)
}

// DownlinkBuilder turns a queued event into the message sent to the edge
type DownlinkBuilder interface {
	Build(ctx context.Context, edge *models.Edge, event *models.EdgeEvent) (*models.DownlinkMsg, error)
}

// EdgeEventHandler exposes an edge's event queue for inspection
type EdgeEventHandler struct {
	events    EdgeEventReader
	edges     EdgeLookup
	downlinks DownlinkBuilder
	logger    Logger
}

// NewEdgeEventHandler creates a new edge event handler
func NewEdgeEventHandler(events EdgeEventReader, edges EdgeLookup, downlinks DownlinkBuilder, logger Logger) *EdgeEventHandler {
	return &EdgeEventHandler{
		events:    events,
		edges:     edges,
		downlinks: downlinks,
		logger:    logger,
	}
}

// ListEvents lists an edge's events oldest first
// GET /api/v1/tenants/:tenantId/edges/:edgeId/events?page=0&page_size=100
func (h *EdgeEventHandler) ListEvents(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := middleware.GetTenantID(c)

	edgeID, err := uuid.Parse(c.Param("edgeId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid edge id",
		})
	}

	link, err := pageLinkFromQuery(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": err.Error(),
		})
	}

	page, err := h.events.ListByEdge(ctx, tenantID, edgeID, link)
	if err != nil {
		h.logger.Error("failed to list edge events", "tenant_id", tenantID, "edge_id", edgeID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to list edge events",
		})
	}

	data := page.Data
	if data == nil {
		data = []models.EdgeEvent{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":           data,
		"total_pages":    page.TotalPages,
		"total_elements": page.TotalElements,
		"has_next":       page.HasNext,
	})
}

// GetDownlink previews the downlink message built for a queued event
// GET /api/v1/tenants/:tenantId/edges/:edgeId/events/:eventId/downlink
func (h *EdgeEventHandler) GetDownlink(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := middleware.GetTenantID(c)

	edgeID, err := uuid.Parse(c.Param("edgeId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid edge id",
		})
	}
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid event id",
		})
	}

	edge, err := h.edges.FindByID(ctx, tenantID, edgeID)
	if err != nil {
		h.logger.Error("failed to load edge", "tenant_id", tenantID, "edge_id", edgeID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to load edge",
		})
	}
	if edge == nil {
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "edge not found",
		})
	}

	event, err := h.events.FindByID(ctx, tenantID, edgeID, eventID)
	if err != nil {
		h.logger.Error("failed to load edge event", "tenant_id", tenantID, "edge_id", edgeID, "event_id", eventID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to load edge event",
		})
	}
	if event == nil {
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "edge event not found",
		})
	}

	msg, err := h.downlinks.Build(ctx, edge, event)
	if err != nil {
		h.logger.Error("failed to build downlink message",
			"tenant_id", tenantID,
			"edge_id", edgeID,
			"event_id", eventID,
			"type", event.Type,
			"action", event.Action,
			"error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to build downlink message",
		})
	}
	if msg == nil {
		return c.NoContent(http.StatusNoContent)
	}

	return c.JSON(http.StatusOK, msg)
}

func pageLinkFromQuery(c echo.Context) (models.PageLink, error) {
	link := models.NewPageLink(models.DefaultPageSize)

	if v := c.QueryParam("page_size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size < 1 || size > maxPageSize {
			return link, fmt.Errorf("page_size must be between 1 and %d", maxPageSize)
		}
		link.PageSize = size
	}

	if v := c.QueryParam("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 0 {
			return link, errors.New("page must be a non-negative integer")
		}
		link.Page = page
	}

	return link, nil
}
