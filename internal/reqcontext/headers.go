package reqcontext

import (
	"net/http"
	"regexp"
)

const (
	// CorrelationIDHeader is the canonical header emitted on every response
	// and on every outbound call made while handling a request.
	CorrelationIDHeader = "X-Correlation-ID"

	// UserIDHeader identifies the acting user on inbound requests.
	UserIDHeader = "X-User-ID"

	// MaxCorrelationIDLength is the maximum accepted length for an inbound ID.
	MaxCorrelationIDLength = 256
)

// inboundAliases lists the header names accepted for an inbound trace ID,
// in priority order. Clients and upstream proxies disagree on the spelling;
// all of these are treated as the same ID.
var inboundAliases = []string{
	"X-Correlation-ID",
	"X-Request-ID",
	"Correlation-ID",
	"Request-ID",
}

// correlationIDPattern validates ID format: alphanumeric, dashes, underscores
var correlationIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,256}$`)

// IsValidCorrelationID checks if an inbound ID matches the allowed pattern.
func IsValidCorrelationID(id string) bool {
	if id == "" || len(id) > MaxCorrelationIDLength {
		return false
	}
	return correlationIDPattern.MatchString(id)
}

// CorrelationIDFromHeaders returns the first valid trace ID found among the
// accepted alias headers, or an empty string if none is present.
func CorrelationIDFromHeaders(h http.Header) string {
	for _, name := range inboundAliases {
		if id := h.Get(name); IsValidCorrelationID(id) {
			return id
		}
	}
	return ""
}

// GetOrGenerateCorrelationID returns the inbound ID when one of the alias
// headers carries a valid value, otherwise generates a new one.
// This is the main entry point for middleware.
func GetOrGenerateCorrelationID(h http.Header) string {
	if id := CorrelationIDFromHeaders(h); id != "" {
		return id
	}
	return GenerateCorrelationID()
}
