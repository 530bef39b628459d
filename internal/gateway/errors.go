package gateway

import (
	"errors"
	"fmt"
)

// Gateway sentinel errors for consistent error handling across the codebase.
var (
	// ErrUnavailable indicates the tool gateway could not be reached after
	// all retry attempts. Callers surface this as service-unavailable.
	ErrUnavailable = errors.New("tool gateway unavailable")

	// ErrProtocol indicates the gateway answered with a malformed or
	// unexpected response shape. Never retried.
	ErrProtocol = errors.New("unexpected tool gateway response")
)

// RPCError is a JSON-RPC-level error object returned by the gateway. It is
// an application failure: it surfaces immediately with the provider's
// message and is never retried.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("tool gateway error %d: %s", e.Code, e.Message)
}

// IsRetryable reports whether err is a transport-level failure worth another
// attempt. JSON-RPC error objects and protocol errors are terminal.
func IsRetryable(err error) bool {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return false
	}
	if errors.Is(err, ErrProtocol) {
		return false
	}
	return true
}
