package notify

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/lyzr/edgesync/cmd/edge-sync/middleware"
	"github.com/lyzr/edgesync/common/models"
)

// EdgeLookup confirms the connecting edge belongs to the tenant
type EdgeLookup interface {
	FindByID(ctx context.Context, tenantID, edgeID uuid.UUID) (*models.Edge, error)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Edges are not browsers
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server accepts edge WebSocket connections
type Server struct {
	hub    *Hub
	edges  EdgeLookup
	logger Logger
}

// NewServer creates a new Server instance
func NewServer(hub *Hub, edges EdgeLookup, logger Logger) *Server {
	return &Server{
		hub:    hub,
		edges:  edges,
		logger: logger,
	}
}

// HandleWebSocket upgrades the request and registers the edge with the hub
// GET /api/v1/tenants/:tenantId/edges/:edgeId/ws
func (s *Server) HandleWebSocket(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := middleware.GetTenantID(c)

	edgeID, err := uuid.Parse(c.Param("edgeId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid edge id",
		})
	}

	edge, err := s.edges.FindByID(ctx, tenantID, edgeID)
	if err != nil {
		s.logger.Error("failed to load edge", "tenant_id", tenantID, "edge_id", edgeID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to load edge",
		})
	}
	if edge == nil {
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "edge not found",
		})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the error response
		s.logger.Warn("websocket upgrade failed", "edge_id", edgeID, "error", err)
		return nil
	}

	client := newClient(s.hub, conn, edgeID)
	if !s.hub.Register(client) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return nil
	}

	s.logger.Info("edge websocket connected", "tenant_id", tenantID, "edge_id", edgeID, "remote", c.RealIP())

	go client.writePump()
	go client.readPump()
	return nil
}
