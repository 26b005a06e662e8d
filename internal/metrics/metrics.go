package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes viewer metrics on a private Prometheus registry. Every
// method is safe on a nil receiver.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	measurementsApplied prometheus.Counter
	measurementsIgnored prometheus.Counter
	patchesEmitted      prometheus.Counter
	transformDuration   prometheus.Histogram
	activeSessions      prometheus.Gauge
	viewers             prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "viz",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests served",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "viz",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	measurementsApplied := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "viz",
		Name:      "measurements_applied_total",
		Help:      "Measurements that changed the scene",
	})

	measurementsIgnored := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "viz",
		Name:      "measurements_ignored_total",
		Help:      "Measurements that matched no switch, capacitor or line",
	})

	patchesEmitted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "viz",
		Name:      "scene_patches_total",
		Help:      "Scene patches sent to viewers",
	})

	transformDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "viz",
		Name:      "topology_load_duration_seconds",
		Help:      "Time to transform and render a topology",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "viz",
		Name:      "sessions_active",
		Help:      "Rendering sessions currently running",
	})

	viewers := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "viz",
		Name:      "viewers_connected",
		Help:      "Websocket viewers currently connected",
	})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		measurementsApplied,
		measurementsIgnored,
		patchesEmitted,
		transformDuration,
		activeSessions,
		viewers,
	)

	return &Metrics{
		registry:            registry,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
		measurementsApplied: measurementsApplied,
		measurementsIgnored: measurementsIgnored,
		patchesEmitted:      patchesEmitted,
		transformDuration:   transformDuration,
		activeSessions:      activeSessions,
		viewers:             viewers,
	}
}

func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// ObserveMeasurement counts one measurement by whether it produced patches.
func (m *Metrics) ObserveMeasurement(patches int) {
	if m == nil {
		return
	}
	if patches == 0 {
		m.measurementsIgnored.Inc()
		return
	}
	m.measurementsApplied.Inc()
	m.patchesEmitted.Add(float64(patches))
}

func (m *Metrics) ObserveLoad(duration time.Duration) {
	if m == nil {
		return
	}
	m.transformDuration.Observe(duration.Seconds())
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *Metrics) SessionEnded() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

func (m *Metrics) ViewerConnected() {
	if m == nil {
		return
	}
	m.viewers.Inc()
}

func (m *Metrics) ViewerDisconnected() {
	if m == nil {
		return
	}
	m.viewers.Dec()
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
