package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/lyzr/edgesync/cmd/edge-sync/container"
	"github.com/lyzr/edgesync/cmd/edge-sync/handlers"
	"github.com/lyzr/edgesync/cmd/edge-sync/middleware"
)

// RegisterTenantRoutes registers the notification intake and edge queue inspection routes
func RegisterTenantRoutes(e *echo.Echo, c *container.Container) {
	// Create handlers using services from container
	nh := handlers.NewNotificationHandler(c.Publisher, c.Components.Logger)
	eh := handlers.NewEdgeEventHandler(c.EdgeEventRepo, c.EdgeRepo, c.Downlinks, c.Components.Logger)

	// All routes are scoped to a tenant taken from the path
	tenants := e.Group("/api/v1/tenants/:tenantId")
	tenants.Use(middleware.ExtractTenant())

	var intakeMiddleware []echo.MiddlewareFunc
	if c.RateLimiter != nil {
		limits := c.Components.Config.RateLimit
		intakeMiddleware = append(intakeMiddleware,
			middleware.TenantRateLimitMiddleware(c.RateLimiter, limits.TenantLimit, limits.WindowSeconds))
	}

	{
		tenants.POST("/notifications", nh.SubmitNotification, intakeMiddleware...) // POST /api/v1/tenants/{tenant}/notifications
		tenants.GET("/edges/:edgeId/events", eh.ListEvents)                        // GET /api/v1/tenants/{tenant}/edges/{edge}/events
		tenants.GET("/edges/:edgeId/events/:eventId/downlink", eh.GetDownlink)     // GET /api/v1/tenants/{tenant}/edges/{edge}/events/{event}/downlink
	}

	if c.NotifyServer != nil {
		tenants.GET("/edges/:edgeId/ws", c.NotifyServer.HandleWebSocket) // GET /api/v1/tenants/{tenant}/edges/{edge}/ws
	}
}
