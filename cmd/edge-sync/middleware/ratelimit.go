package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/lyzr/edgesync/common/ratelimit"
)

// TenantLimiter counts requests per tenant
type TenantLimiter interface {
	CheckTenantLimit(ctx context.Context, tenantID uuid.UUID, limit int64, windowSec int) (*ratelimit.RateLimitResult, error)
}

// TenantRateLimitMiddleware limits requests per tenant per window.
// Requires ExtractTenant to run first. Limiter failures let the request through.
func TenantRateLimitMiddleware(limiter TenantLimiter, limit int64, windowSec int) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tenantID := GetTenantID(c)
			if tenantID == uuid.Nil {
				return next(c)
			}

			result, err := limiter.CheckTenantLimit(c.Request().Context(), tenantID, limit, windowSec)
			if err != nil {
				// On error, allow request (fail open for availability)
				return next(c)
			}

			if !result.Allowed {
				c.Response().Header().Set("Retry-After", strconv.FormatInt(result.RetryAfterSeconds, 10))
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":   "tenant_rate_limit_exceeded",
					"message": "Too many notifications for this tenant. Please wait before trying again.",
					"details": map[string]interface{}{
						"tenant_id":           tenantID,
						"limit":               result.Limit,
						"window_seconds":      windowSec,
						"current_count":       result.CurrentCount,
						"retry_after_seconds": result.RetryAfterSeconds,
					},
				})
			}

			return next(c)
		}
	}
}
