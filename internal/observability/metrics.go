package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MetricsManager manages Prometheus metrics
type MetricsManager struct {
	logger   *zap.SugaredLogger
	registry *prometheus.Registry

	// Core metrics
	uptime       prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	// OAuth flow metrics
	oauthAttempts *prometheus.CounterVec
	oauthDuration *prometheus.HistogramVec
	pendingAuths  prometheus.Gauge

	// Gateway metrics
	gatewayCalls    *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
	gatewayRetries  *prometheus.CounterVec

	// Publishing metrics
	postsPublished *prometheus.CounterVec
	disconnects    *prometheus.CounterVec
}

// NewMetricsManager creates a new metrics manager
func NewMetricsManager(logger *zap.SugaredLogger) *MetricsManager {
	registry := prometheus.NewRegistry()

	mm := &MetricsManager{
		logger:   logger,
		registry: registry,
	}

	mm.initMetrics()
	mm.registerMetrics()

	return mm
}

// initMetrics initializes all Prometheus metrics
func (mm *MetricsManager) initMetrics() {
	// System metrics
	mm.uptime = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "postflow_uptime_seconds",
		Help: "Time since the application started",
	})

	// HTTP metrics
	mm.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postflow_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	mm.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "postflow_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// OAuth flow metrics
	mm.oauthAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postflow_oauth_attempts_total",
			Help: "Total number of completed OAuth callback flows",
		},
		[]string{"platform", "outcome", "reason"},
	)

	mm.oauthDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "postflow_oauth_flow_duration_seconds",
			Help:    "OAuth callback flow duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"platform", "outcome"},
	)

	mm.pendingAuths = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "postflow_pending_authorizations",
		Help: "Number of pending authorization states awaiting callback",
	})

	// Gateway metrics
	mm.gatewayCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postflow_gateway_calls_total",
			Help: "Total number of gateway tool invocations",
		},
		[]string{"tool", "status"},
	)

	mm.gatewayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "postflow_gateway_call_duration_seconds",
			Help:    "Gateway tool invocation duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"tool", "status"},
	)

	mm.gatewayRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postflow_gateway_retries_total",
			Help: "Total number of gateway call retries",
		},
		[]string{"tool"},
	)

	// Publishing metrics
	mm.postsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postflow_posts_published_total",
			Help: "Total number of post publications",
		},
		[]string{"platform", "status"},
	)

	mm.disconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postflow_disconnects_total",
			Help: "Total number of account disconnections",
		},
		[]string{"platform"},
	)
}

// registerMetrics registers all metrics with the registry
func (mm *MetricsManager) registerMetrics() {
	mm.registry.MustRegister(
		mm.uptime,
		mm.httpRequests,
		mm.httpDuration,
		mm.oauthAttempts,
		mm.oauthDuration,
		mm.pendingAuths,
		mm.gatewayCalls,
		mm.gatewayDuration,
		mm.gatewayRetries,
		mm.postsPublished,
		mm.disconnects,
	)

	// Also register Go runtime metrics
	mm.registry.MustRegister(collectors.NewGoCollector())
	mm.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// Handler returns an HTTP handler for the /metrics endpoint
func (mm *MetricsManager) Handler() http.Handler {
	return promhttp.HandlerFor(mm.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// SetUptime sets the uptime metric
func (mm *MetricsManager) SetUptime(startTime time.Time) {
	mm.uptime.Set(time.Since(startTime).Seconds())
}

// RecordHTTPRequest records an HTTP request
func (mm *MetricsManager) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	mm.httpRequests.WithLabelValues(method, path, status).Inc()
	mm.httpDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveAttempt records a terminal OAuth flow outcome.
func (mm *MetricsManager) ObserveAttempt(platformName, outcome, reason string, duration time.Duration) {
	if reason == "" {
		reason = "none"
	}
	mm.oauthAttempts.WithLabelValues(platformName, outcome, reason).Inc()
	mm.oauthDuration.WithLabelValues(platformName, outcome).Observe(duration.Seconds())
}

// SetPendingAuthorizations sets the pending-authorization gauge
func (mm *MetricsManager) SetPendingAuthorizations(count int) {
	mm.pendingAuths.Set(float64(count))
}

// RecordGatewayCall records a gateway tool invocation
func (mm *MetricsManager) RecordGatewayCall(tool, status string, duration time.Duration) {
	mm.gatewayCalls.WithLabelValues(tool, status).Inc()
	mm.gatewayDuration.WithLabelValues(tool, status).Observe(duration.Seconds())
}

// RecordGatewayRetry records a gateway call retry
func (mm *MetricsManager) RecordGatewayRetry(tool string) {
	mm.gatewayRetries.WithLabelValues(tool).Inc()
}

// RecordPost records a post publication attempt
func (mm *MetricsManager) RecordPost(platformName, status string) {
	mm.postsPublished.WithLabelValues(platformName, status).Inc()
}

// RecordDisconnect records an account disconnection
func (mm *MetricsManager) RecordDisconnect(platformName string) {
	mm.disconnects.WithLabelValues(platformName).Inc()
}

// Registry returns the Prometheus registry for custom metrics
func (mm *MetricsManager) Registry() *prometheus.Registry {
	return mm.registry
}

// HTTPMiddleware returns middleware that records HTTP metrics
func (mm *MetricsManager) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap the response writer to capture status code
			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			mm.RecordHTTPRequest(r.Method, r.URL.Path, http.StatusText(ww.statusCode), duration)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
