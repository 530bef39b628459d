// Package contracts defines the JSON shapes shared between the HTTP API and
// its clients.
package contracts

import "time"

// APIResponse is the uniform envelope for JSON endpoints. Error carries a
// machine-readable code, never raw error text.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// NewSuccessResponse wraps data in a success envelope.
func NewSuccessResponse(data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse wraps a machine-readable error code in a failure envelope.
func NewErrorResponse(code string) APIResponse {
	return APIResponse{
		Success: false,
		Error:   code,
	}
}

// PostRequest is the body of POST /{platform}/post.
type PostRequest struct {
	Content string `json:"content"`
	UserID  string `json:"user_id,omitempty"`
}

// DisconnectResponse is the body of a successful DELETE /{platform}/disconnect.
type DisconnectResponse struct {
	Message string `json:"message"`
}

// AttemptView is the API projection of a stored OAuth attempt audit row.
type AttemptView struct {
	ID            string    `json:"id"`
	CorrelationID string    `json:"correlation_id"`
	UserID        string    `json:"user_id"`
	Platform      string    `json:"platform"`
	Outcome       string    `json:"outcome"`
	Reason        string    `json:"reason,omitempty"`
	DurationMS    int64     `json:"duration_ms"`
	Timestamp     time.Time `json:"timestamp"`
}
