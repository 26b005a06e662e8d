package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/auth"
	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/engine"
	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/feeder"
	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/metrics"
	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/modelsource"
	"github.com/GRIDAPPSD/gridappsd-viz-sub001/internal/session"
)

type testServer struct {
	router   http.Handler
	registry *session.Registry
	metrics  *metrics.Metrics
}

func newTestServer(t *testing.T, secret string) *testServer {
	t.Helper()
	m := metrics.New()
	reg := session.NewRegistry(context.Background(), session.RegistryOptions{Width: 1200, Height: 800, Metrics: m})
	t.Cleanup(reg.CloseAll)

	h := NewHandler(reg, modelsource.StaticFetcher{"sample": feeder.NewSampleModel()}, nil, "")
	return &testServer{
		router: NewRouter(RouterConfig{
			Handler: h,
			Auth:    auth.NewService(secret),
			Metrics: m,
			Origins: []string{"http://localhost:5173"},
		}),
		registry: reg,
		metrics:  m,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) createLoaded(t *testing.T) string {
	t.Helper()
	maps := feeder.NewSampleMaps()
	rec := ts.do(t, "POST", "/api/sessions", map[string]any{"lineName": "sample", "maps": maps})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp createSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "loaded", resp.Status)
	return resp.ID
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, "")
	rec := ts.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCreateSession_Validation(t *testing.T) {
	ts := newTestServer(t, "")

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"missing line", map[string]any{}, http.StatusBadRequest},
		{"unknown line", map[string]any{"lineName": "ieee9500"}, http.StatusNotFound},
		{"bad line name", map[string]any{"lineName": "../x"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, "POST", "/api/sessions", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
	assert.Equal(t, 0, ts.registry.Len())
}

func TestCreateSession_PendingUntilMaps(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, "POST", "/api/sessions", map[string]any{"lineName": "sample", "simulationId": "sim-1"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp createSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pending", resp.Status)
	assert.True(t, resp.Pending)
	assert.Equal(t, "sim-1", resp.SimulationID)

	rec = ts.do(t, "GET", "/api/sessions/"+resp.ID+"/scene.svg", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, "PUT", "/api/sessions/"+resp.ID+"/maps", feeder.NewSampleMaps())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var info session.Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.True(t, info.Loaded)
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t, "")
	id := ts.createLoaded(t)
	base := "/api/sessions/" + id

	rec := ts.do(t, "GET", base+"/scene.svg", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "<svg"))

	rec = ts.do(t, "GET", "/api/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []session.Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)

	assert.Equal(t, http.StatusNoContent, ts.do(t, "DELETE", base, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, "GET", base, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, "DELETE", base, nil).Code)
}

func TestSearch(t *testing.T) {
	ts := newTestServer(t, "")
	base := "/api/sessions/" + ts.createLoaded(t)

	rec := ts.do(t, "GET", base+"/search?q=cap&size=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var res session.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotEmpty(t, res.Matches)
	assert.Equal(t, "cap1", res.Matches[0].Name)
	assert.Equal(t, "name", string(res.Matches[0].MatchedOn))

	rec = ts.do(t, "GET", base+"/search?q=", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"matches":[]`)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, "GET", base+"/search?q=cap&page=x", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, "GET", base+"/search?q=cap&size=-1", nil).Code)
}

func TestLocateAndView(t *testing.T) {
	ts := newTestServer(t, "")
	base := "/api/sessions/" + ts.createLoaded(t)

	assert.Equal(t, http.StatusNotFound, ts.do(t, "POST", base+"/locate", map[string]string{"name": "ghost"}).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, "POST", base+"/locate", map[string]string{}).Code)
	assert.Equal(t, http.StatusNoContent, ts.do(t, "POST", base+"/locate", map[string]string{"name": "cap1"}).Code)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, "POST", base+"/view/zoom", map[string]float64{"k": 0}).Code)
	assert.Equal(t, http.StatusNoContent, ts.do(t, "POST", base+"/view/zoom", map[string]float64{"k": 3}).Code)
	assert.Equal(t, http.StatusNoContent, ts.do(t, "POST", base+"/view/pan", map[string]float64{"dx": 5}).Code)
	assert.Equal(t, http.StatusNoContent, ts.do(t, "POST", base+"/view/reset", nil).Code)

	rec := ts.do(t, "GET", base, nil)
	var info session.Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, engine.Identity().ToSlice(), info.Transform)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, "PUT", base+"/view/size", map[string]float64{"width": 0}).Code)
	assert.Equal(t, http.StatusNoContent, ts.do(t, "PUT", base+"/view/size", map[string]float64{"width": 640, "height": 480}).Code)
}

func TestClickAndHover(t *testing.T) {
	ts := newTestServer(t, "")
	base := "/api/sessions/" + ts.createLoaded(t)

	rec := ts.do(t, "POST", base+"/click", map[string]float64{"x": 600, "y": 790})
	require.Equal(t, http.StatusOK, rec.Code)
	var in engine.Intent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &in))
	assert.Equal(t, engine.IntentSwitchControl, in.Kind)
	assert.Equal(t, "sw1", in.Node)

	rec = ts.do(t, "POST", base+"/hover", map[string]any{"x": 1190, "y": 10, "clientId": "client_x"})
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestMeasurementsAndIndicator(t *testing.T) {
	ts := newTestServer(t, "")
	base := "/api/sessions/" + ts.createLoaded(t)

	req := httptest.NewRequest("POST", base+"/measurements",
		strings.NewReader(`[{"conductingEquipmentMRID":"_SW1","type":"TAP","value":0},{"conductingEquipmentMRID":"_X","type":"POS","value":1}]`))
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"accepted":2}`, rec.Body.String())

	req = httptest.NewRequest("POST", base+"/measurements", strings.NewReader(`{`))
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusNoContent, ts.do(t, "PUT", base+"/indicator", map[string]bool{"on": false}).Code)

	require.Eventually(t, func() bool {
		return strings.Contains(scrape(t, ts), "viz_measurements_ignored_total 1")
	}, time.Second, 10*time.Millisecond)
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t, "secret")

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, "GET", "/api/sessions", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, "GET", "/health", nil).Code)

	tok, err := auth.NewService("secret").IssueToken("operator", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest("GET", "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"subject":"operator"`)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, "secret")

	req := httptest.NewRequest("OPTIONS", "/api/sessions", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsUseRouteTemplates(t *testing.T) {
	ts := newTestServer(t, "")
	ts.createLoaded(t)

	body := scrape(t, ts)
	assert.Contains(t, body, `path="/api/sessions"`)
	assert.NotContains(t, body, "sess_")
}

func scrape(t *testing.T, ts *testServer) string {
	t.Helper()
	rec := httptest.NewRecorder()
	ts.metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	return rec.Body.String()
}
