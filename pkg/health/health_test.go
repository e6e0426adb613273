package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, c *Checker, path string) (int, Response) {
	t.Helper()
	e := echo.New()
	c.RegisterRoutes(e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestLiveness(t *testing.T) {
	code, resp := get(t, NewChecker("1.0.0"), "/api/v1/health/live")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "1.0.0", resp.Version)
}

func TestReadiness(t *testing.T) {
	healthy := func(context.Context) error { return nil }
	failing := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		ready      bool
		checks     map[string]CheckFunc
		optional   map[string]CheckFunc
		wantCode   int
		wantStatus Status
	}{
		{name: "starting", ready: false, wantCode: http.StatusServiceUnavailable, wantStatus: StatusUnhealthy},
		{name: "all healthy", ready: true, checks: map[string]CheckFunc{"database": healthy, "redis": healthy}, wantCode: http.StatusOK, wantStatus: StatusHealthy},
		{name: "optional dependency missing", ready: true, checks: map[string]CheckFunc{"database": healthy, "redis": nil}, wantCode: http.StatusOK, wantStatus: StatusDegraded},
		{name: "database down", ready: true, checks: map[string]CheckFunc{"database": failing, "redis": healthy}, wantCode: http.StatusServiceUnavailable, wantStatus: StatusUnhealthy},
		{name: "optional dependency down", ready: true, checks: map[string]CheckFunc{"database": healthy}, optional: map[string]CheckFunc{"storage": failing}, wantCode: http.StatusOK, wantStatus: StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker("test")
			for name, fn := range tt.checks {
				c.AddCheck(name, fn)
			}
			for name, fn := range tt.optional {
				c.AddOptionalCheck(name, fn)
			}
			c.SetReady(tt.ready)

			code, resp := get(t, c, "/api/v1/health/ready")

			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, resp.Status)
		})
	}
}

func TestHealthReportsFailures(t *testing.T) {
	c := NewChecker("test")
	c.AddCheck("database", func(context.Context) error { return errors.New("timeout") })

	code, resp := get(t, c, "/api/v1/health")

	assert.Equal(t, http.StatusServiceUnavailable, code)
	require.Contains(t, resp.Checks, "database")
	assert.Equal(t, "timeout", resp.Checks["database"].Message)
}
