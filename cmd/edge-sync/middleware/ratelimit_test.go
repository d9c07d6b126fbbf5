package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/lyzr/edgesync/common/ratelimit"
	"github.com/stretchr/testify/assert"
)

type countingLimiter struct {
	counts map[uuid.UUID]int64
	err    error
}

func (l *countingLimiter) CheckTenantLimit(ctx context.Context, tenantID uuid.UUID, limit int64, windowSec int) (*ratelimit.RateLimitResult, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.counts[tenantID]++
	current := l.counts[tenantID]
	res := &ratelimit.RateLimitResult{Allowed: current <= limit, CurrentCount: current, Limit: limit}
	if !res.Allowed {
		res.RetryAfterSeconds = int64(windowSec)
	}
	return res, nil
}

func newLimitedEcho(limiter TenantLimiter) *echo.Echo {
	e := echo.New()
	g := e.Group("/api/v1/tenants/:tenantId")
	g.Use(ExtractTenant(), TenantRateLimitMiddleware(limiter, 2, 60))
	g.POST("/notifications", func(c echo.Context) error {
		return c.NoContent(http.StatusAccepted)
	})
	return e
}

func post(e *echo.Echo, tenantID uuid.UUID) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/tenants/"+tenantID.String()+"/notifications", nil))
	return rec
}

func TestTenantRateLimit(t *testing.T) {
	e := newLimitedEcho(&countingLimiter{counts: make(map[uuid.UUID]int64)})
	tenantA := uuid.New()
	tenantB := uuid.New()

	assert.Equal(t, http.StatusAccepted, post(e, tenantA).Code)
	assert.Equal(t, http.StatusAccepted, post(e, tenantA).Code)

	rec := post(e, tenantA)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// Other tenants have their own window
	assert.Equal(t, http.StatusAccepted, post(e, tenantB).Code)
}

func TestTenantRateLimit_FailsOpen(t *testing.T) {
	e := newLimitedEcho(&countingLimiter{err: errors.New("redis down")})

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusAccepted, post(e, uuid.New()).Code)
	}
}
