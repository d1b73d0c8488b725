package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"survey-public-api/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	name string
	err  error
}

func (f fakeChecker) Ping(context.Context) error { return f.err }
func (f fakeChecker) Name() string               { return f.name }

func runHealth(t *testing.T, checkers ...ports.HealthChecker) (int, map[string]any) {
	t.Helper()
	r := gin.New()
	r.GET("/health", HealthCheck(checkers...))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestHealthCheck_AllHealthy(t *testing.T) {
	code, body := runHealth(t, fakeChecker{name: "postgresql"}, fakeChecker{name: "redis"})

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	deps := body["dependencies"].(map[string]any)
	assert.Len(t, deps, 2)
}

func TestHealthCheck_Degraded(t *testing.T) {
	code, body := runHealth(t,
		fakeChecker{name: "postgresql"},
		fakeChecker{name: "redis", err: errors.New("connection refused")},
	)

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", body["status"])
	redis := body["dependencies"].(map[string]any)["redis"].(map[string]any)
	assert.Equal(t, "unhealthy", redis["status"])
}

func TestHealthCheck_NoDependencies(t *testing.T) {
	code, body := runHealth(t)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
}
