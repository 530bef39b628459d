package httpapi

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/postflow/postflow-go/internal/reqcontext"
)

// CorrelationMiddleware extracts or generates a correlation ID for each request.
// Any of the accepted alias headers may carry the inbound ID; invalid or absent
// IDs are replaced by a fresh UUID v4.
// The correlation ID is:
// - Added to the request context
// - Set in the X-Correlation-ID response header (before calling next handler)
// - Available for logging via reqcontext.GetCorrelationID(ctx)
// The acting user from X-User-ID is stashed alongside, defaulting to anonymous.
func CorrelationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := reqcontext.GetOrGenerateCorrelationID(r.Header)

		// Set response header BEFORE calling next handler
		// This ensures the header is present even on error paths
		w.Header().Set(reqcontext.CorrelationIDHeader, correlationID)

		ctx := reqcontext.WithCorrelationID(r.Context(), correlationID)
		ctx = reqcontext.WithUserID(ctx, r.Header.Get(reqcontext.UserIDHeader))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLoggerMiddleware creates a logger with the correlation_id field and
// adds it to context. Register AFTER CorrelationMiddleware.
func RequestLoggerMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			requestLogger := logger.With("correlation_id", reqcontext.GetCorrelationID(ctx))
			if userID := reqcontext.GetUserID(ctx); userID != reqcontext.AnonymousUser {
				requestLogger = requestLogger.With("user_id", userID)
			}

			ctx = WithLogger(ctx, requestLogger)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithLogger adds a logger to the context
func WithLogger(ctx context.Context, logger *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, reqcontext.LoggerKey, logger)
}

// GetLogger retrieves the logger from context, or returns a nop logger if not found
func GetLogger(ctx context.Context) *zap.SugaredLogger {
	if ctx == nil {
		return zap.NewNop().Sugar()
	}
	if logger, ok := ctx.Value(reqcontext.LoggerKey).(*zap.SugaredLogger); ok && logger != nil {
		return logger
	}
	return zap.NewNop().Sugar()
}
