// Package oauth implements the multi-hop token acquisition flow: building an
// authorization request, persisting its anti-replay record, validating the
// provider callback, exchanging the code through the tool gateway, and
// storing the resulting credential.
package oauth

import "errors"

// FailureReason is the machine-readable code attached to a failed flow.
// Raw error text is never forwarded to the caller; these codes are.
type FailureReason string

const (
	ReasonMissingState        FailureReason = "missing_state"
	ReasonInvalidState        FailureReason = "invalid_state"
	ReasonMissingCodeVerifier FailureReason = "missing_code_verifier"
	ReasonExchangeFailed      FailureReason = "exchange_failed"
	ReasonStorageError        FailureReason = "storage_error"
	ReasonUnsupportedPlatform FailureReason = "unsupported_platform"
)

// Sentinel errors surfaced by Initiate. The HTTP boundary maps these to
// status codes and machine-readable messages.
var (
	// ErrMissingAuthURL indicates the gateway response carried no
	// authorization URL. Surfaced as an upstream protocol error.
	ErrMissingAuthURL = errors.New("gateway response missing authorization URL")

	// ErrMissingState indicates neither an explicit state field nor a
	// state query parameter could be found in the gateway response.
	ErrMissingState = errors.New("gateway response missing state token")
)
