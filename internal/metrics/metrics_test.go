package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveHTTPRequest("GET", "/health", 200, time.Millisecond)
	m.ObserveMeasurement(3)
	m.ObserveLoad(time.Millisecond)
	m.SessionStarted()
	m.SessionEnded()
	m.ViewerConnected()
	m.ViewerDisconnected()
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetrics_ObserveMeasurement(t *testing.T) {
	m := New()
	m.ObserveMeasurement(0)
	m.ObserveMeasurement(2)
	m.ObserveMeasurement(3)

	body := scrape(t, m)
	assert.Contains(t, body, "viz_measurements_ignored_total 1")
	assert.Contains(t, body, "viz_measurements_applied_total 2")
	assert.Contains(t, body, "viz_scene_patches_total 5")
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.SessionStarted()
	m.ObserveHTTPRequest("GET", "/health", 200, time.Millisecond)

	body := scrape(t, m)
	assert.True(t, strings.Contains(body, "viz_sessions_active 1"))
	assert.True(t, strings.Contains(body, "viz_http_requests_total"))
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}
