package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap/zaptest"

	"github.com/postflow/postflow-go/internal/config"
)

func newTestMetrics(t *testing.T) *MetricsManager {
	t.Helper()
	return NewMetricsManager(zaptest.NewLogger(t).Sugar())
}

func TestObserveAttempt(t *testing.T) {
	mm := newTestMetrics(t)

	mm.ObserveAttempt("twitter", "success", "", 250*time.Millisecond)
	mm.ObserveAttempt("twitter", "success", "", 100*time.Millisecond)
	mm.ObserveAttempt("linkedin", "error", "invalid_state", 5*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(mm.oauthAttempts.WithLabelValues("twitter", "success", "none")))
	assert.Equal(t, float64(1), testutil.ToFloat64(mm.oauthAttempts.WithLabelValues("linkedin", "error", "invalid_state")))
}

func TestMetricsHandler(t *testing.T) {
	mm := newTestMetrics(t)
	mm.RecordGatewayCall("twitter_exchange_code", "success", 120*time.Millisecond)
	mm.RecordPost("facebook", "success")
	mm.SetPendingAuthorizations(3)

	srv := httptest.NewServer(mm.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := make([]byte, 1<<20)
	n, _ := resp.Body.Read(body)
	text := string(body[:n])
	assert.Contains(t, text, "postflow_gateway_calls_total")
	assert.Contains(t, text, "postflow_posts_published_total")
	assert.Contains(t, text, "postflow_pending_authorizations 3")
}

func TestHTTPMiddlewareRecordsStatus(t *testing.T) {
	mm := newTestMetrics(t)

	handler := mm.HTTPMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	count := testutil.ToFloat64(mm.httpRequests.WithLabelValues(http.MethodGet, "/missing", http.StatusText(http.StatusNotFound)))
	assert.Equal(t, float64(1), count)
}

func TestRecordGatewayRetry(t *testing.T) {
	mm := newTestMetrics(t)

	mm.RecordGatewayRetry("twitter_exchange_code")
	mm.RecordGatewayRetry("twitter_exchange_code")

	assert.Equal(t, float64(2), testutil.ToFloat64(mm.gatewayRetries.WithLabelValues("twitter_exchange_code")))
}

func TestTracingDisabledIsNoOp(t *testing.T) {
	tm, err := NewTracingManager(zaptest.NewLogger(t).Sugar(), config.TracingConfig{Enabled: false})
	require.NoError(t, err)
	assert.False(t, tm.IsEnabled())

	mw := tm.HTTPMiddleware()
	called := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.True(t, called)

	// The span helpers degrade to no-op spans and never panic.
	ctx, span := tm.TraceFlow(context.Background(), "twitter", "initiate")
	span.End()
	_, span = tm.TraceGatewayCall(ctx, "twitter_create_post")
	span.End()
	tm.AddSpanAttributes(ctx, attribute.String("correlation_id", "corr-1"))
	tm.SetSpanError(ctx, assert.AnError)

	assert.NoError(t, tm.Close(req.Context()))
}

func TestMetricsNamesArePrefixed(t *testing.T) {
	mm := newTestMetrics(t)

	families, err := mm.Registry().Gather()
	require.NoError(t, err)

	for _, fam := range families {
		name := fam.GetName()
		if strings.HasPrefix(name, "go_") || strings.HasPrefix(name, "process_") {
			continue
		}
		assert.True(t, strings.HasPrefix(name, "postflow_"), "metric %s missing prefix", name)
	}
}
