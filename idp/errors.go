package idp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// TransportError indicates the token endpoint could not be reached or did
// not answer in time. Always terminal for the current attempt; the caller
// chooses whether to surface it or mask it behind a redirect.
type TransportError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was an upstream deadline being
// exceeded rather than some other transport fault.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// ProtocolError indicates the IdP answered with an OAuth-level rejection:
// either a non-200 status, or a 200 response whose body carries an error
// field. Code/Description are set when the body was structured JSON,
// RawBody otherwise.
type ProtocolError struct {
	StatusCode  int
	Code        string
	Description string
	RawBody     string
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("IdP returned status %d: %s: %s", e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("IdP returned status %d: %s", e.StatusCode, e.RawBody)
}

// TransportSuccess reports whether the rejection arrived inside a 200
// response, which the exchange flow treats as an IdP-level rejection
// distinct from a transport-level failure.
func (e *ProtocolError) TransportSuccess() bool {
	return e.StatusCode == http.StatusOK
}

// MalformedResponseError indicates a transport-level success whose body is
// unusable: not valid JSON, or structurally incomplete (no id_token).
type MalformedResponseError struct {
	StatusCode int
	Reason     string
}

// Error implements the error interface.
func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed token response (status %d): %s", e.StatusCode, e.Reason)
}
