package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// TenantIDKey is the context key for the tenant parsed from the path
	TenantIDKey ContextKey = "tenant_id"
)

// ExtractTenant parses the :tenantId path parameter and stores it in the
// request context. Requests with a malformed tenant id are rejected.
//
// Usage:
//
//	g := e.Group("/api/v1/tenants/:tenantId")
//	g.Use(middleware.ExtractTenant())
func ExtractTenant() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tenantID, err := uuid.Parse(c.Param("tenantId"))
			if err != nil {
				return c.JSON(http.StatusBadRequest, map[string]interface{}{
					"error": "invalid tenant id",
				})
			}

			c.Set(string(TenantIDKey), tenantID)
			return next(c)
		}
	}
}

// GetTenantID retrieves the tenant from the request context.
// Returns uuid.Nil if not set.
func GetTenantID(c echo.Context) uuid.UUID {
	tenantID, ok := c.Get(string(TenantIDKey)).(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return tenantID
}
