// Package reqcontext carries per-request correlation metadata through
// context.Context so every hop of an OAuth attempt logs the same trace ID.
package reqcontext

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type for context keys to avoid collisions
type ContextKey string

const (
	// CorrelationIDKey is the context key for correlation IDs
	CorrelationIDKey ContextKey = "correlation_id"

	// UserIDKey is the context key for the acting user
	UserIDKey ContextKey = "user_id"

	// LoggerKey is the context key for the request-scoped logger
	LoggerKey ContextKey = "logger"
)

// AnonymousUser is the user ID recorded when no identity header is present.
const AnonymousUser = "anonymous"

// GenerateCorrelationID generates a new unique correlation ID using UUID v4.
func GenerateCorrelationID() string {
	return uuid.New().String()
}

// WithCorrelationID adds a correlation ID to the context
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, correlationID)
}

// GetCorrelationID retrieves the correlation ID from context.
// Returns an empty string if none is present.
func GetCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}

// WithUserID adds the acting user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	if userID == "" {
		userID = AnonymousUser
	}
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID retrieves the user ID from context, defaulting to AnonymousUser.
func GetUserID(ctx context.Context) string {
	if ctx == nil {
		return AnonymousUser
	}
	if id, ok := ctx.Value(UserIDKey).(string); ok && id != "" {
		return id
	}
	return AnonymousUser
}
