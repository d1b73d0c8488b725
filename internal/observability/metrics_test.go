package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestMetrics_Observers(t *testing.T) {
	m := NewMetrics()

	m.ObserveRateLimit("free", true)
	m.ObserveRateLimit("free", false)
	m.ObserveRateLimit("free", false)
	m.ObserveAuthFailure("token")
	m.ObserveJWKSRefresh(nil)
	m.ObserveJWKSRefresh(errors.New("timeout"))
	m.ObserveDelivery("survey.created", false, 3)
	m.IncDropped()
	m.SetQueueDepth(7)

	body := scrape(t, m)
	assert.Contains(t, body, `ratelimit_decisions_total{outcome="allowed",tier="free"} 1`)
	assert.Contains(t, body, `ratelimit_decisions_total{outcome="denied",tier="free"} 2`)
	assert.Contains(t, body, `auth_failures_total{stage="token"} 1`)
	assert.Contains(t, body, `jwks_refreshes_total{result="error"} 1`)
	assert.Contains(t, body, `jwks_refreshes_total{result="ok"} 1`)
	assert.Contains(t, body, `webhook_deliveries_total{event="survey.created",outcome="failure"} 1`)
	assert.Contains(t, body, `webhook_dispatch_dropped_total 1`)
	assert.Contains(t, body, `webhook_queue_depth 7`)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRateLimit("pro", true)
		m.ObserveAuthFailure("scope")
		m.ObserveJWKSRefresh(nil)
		m.ObserveDelivery("x", true, 1)
		m.SetQueueDepth(1)
		m.IncDropped()
	})
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.ObserveAuthFailure("scope")

	assert.Contains(t, scrape(t, a), `auth_failures_total{stage="scope"} 1`)
	assert.NotContains(t, scrape(t, b), `auth_failures_total{stage="scope"}`)
}
