package oauth

import (
	"time"

	"github.com/postflow/postflow-go/internal/reqcontext"
)

// FlowState represents where a callback is in the acquisition saga.
type FlowState int

const (
	// FlowReceived indicates the provider redirect has arrived.
	FlowReceived FlowState = iota
	// FlowStateValidated indicates the pending-authorization record was
	// found and consumed. Consumption happens here, once, regardless of
	// what the downstream exchange does.
	FlowStateValidated
	// FlowTokenExchanged indicates the code was exchanged for tokens.
	FlowTokenExchanged
	// FlowCredentialPersisted indicates the credential was stored.
	FlowCredentialPersisted
	// FlowDone indicates the flow completed successfully.
	FlowDone
	// FlowFailed indicates the flow terminated with a failure reason.
	FlowFailed
)

// String returns a human-readable representation of the flow state.
func (s FlowState) String() string {
	switch s {
	case FlowReceived:
		return "received"
	case FlowStateValidated:
		return "state_validated"
	case FlowTokenExchanged:
		return "token_exchanged"
	case FlowCredentialPersisted:
		return "credential_persisted"
	case FlowDone:
		return "done"
	case FlowFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FlowContext tracks one OAuth attempt across its hops. Its correlation ID
// links every log entry the attempt produces.
type FlowContext struct {
	CorrelationID string
	Platform      string
	UserID        string
	StartTime     time.Time
	State         FlowState
}

// NewFlowContext creates a flow context, reusing the correlation ID already
// attached to the request context when present.
func NewFlowContext(correlationID, platformName string) *FlowContext {
	if correlationID == "" {
		correlationID = reqcontext.GenerateCorrelationID()
	}
	return &FlowContext{
		CorrelationID: correlationID,
		Platform:      platformName,
		StartTime:     time.Now(),
		State:         FlowReceived,
	}
}

// SetState advances the flow to the given state.
func (c *FlowContext) SetState(state FlowState) {
	c.State = state
}

// Duration returns the time elapsed since the flow started.
func (c *FlowContext) Duration() time.Duration {
	return time.Since(c.StartTime)
}

// RedirectResult is the terminal outcome of a callback, rendered by the
// frontend after a redirect.
type RedirectResult struct {
	Platform string
	Status   string // "success" or "error"
	Reason   FailureReason
}

func successResult(platformName string) RedirectResult {
	return RedirectResult{Platform: platformName, Status: "success"}
}

func failureResult(platformName string, reason FailureReason) RedirectResult {
	return RedirectResult{Platform: platformName, Status: "error", Reason: reason}
}
