package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/postflow/postflow-go/internal/reqcontext"
)

func TestCorrelationMiddlewareAliasIntake(t *testing.T) {
	aliases := []string{"X-Correlation-ID", "X-Request-ID", "Correlation-ID", "Request-ID"}

	for _, alias := range aliases {
		t.Run(alias, func(t *testing.T) {
			var seen string
			handler := CorrelationMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = reqcontext.GetCorrelationID(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/twitter/status", nil)
			req.Header.Set(alias, "client-id-123")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, "client-id-123", seen)
			assert.Equal(t, "client-id-123", rec.Header().Get(reqcontext.CorrelationIDHeader))
		})
	}
}

func TestCorrelationMiddlewareGeneratesWhenAbsent(t *testing.T) {
	var seen string
	handler := CorrelationMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = reqcontext.GetCorrelationID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(reqcontext.CorrelationIDHeader))
}

func TestCorrelationMiddlewareRejectsInvalidInbound(t *testing.T) {
	handler := CorrelationMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(reqcontext.CorrelationIDHeader, "bad id with spaces")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	echoed := rec.Header().Get(reqcontext.CorrelationIDHeader)
	assert.NotEmpty(t, echoed)
	assert.NotEqual(t, "bad id with spaces", echoed)
}

func TestCorrelationMiddlewareEchoesOnErrorResponse(t *testing.T) {
	handler := CorrelationMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	req := httptest.NewRequest(http.MethodGet, "/twitter/post", nil)
	req.Header.Set("X-Request-ID", "trace-err-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "trace-err-1", rec.Header().Get(reqcontext.CorrelationIDHeader))
}

func TestCorrelationMiddlewareUserID(t *testing.T) {
	var seen string
	handler := CorrelationMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = reqcontext.GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("header present", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/twitter/status", nil)
		req.Header.Set(reqcontext.UserIDHeader, "u42")
		handler.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, "u42", seen)
	})

	t.Run("defaults to anonymous", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/twitter/status", nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, reqcontext.AnonymousUser, seen)
	})
}

func TestRequestLoggerMiddleware(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()

	var gotLogger bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLogger = GetLogger(r.Context()) != nil
		w.WriteHeader(http.StatusOK)
	})
	handler := CorrelationMiddleware(RequestLoggerMiddleware(logger)(inner))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, gotLogger)
}

func TestGetLoggerFallsBackToNop(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	logger := GetLogger(req.Context())
	require.NotNil(t, logger)
	logger.Debug("must not panic")
}
