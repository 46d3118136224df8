package idp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestTransportError_Timeout(t *testing.T) {
	deadline := &TransportError{Op: "ExchangeCode", Err: fmt.Errorf("request failed: %w", context.DeadlineExceeded)}
	if !deadline.Timeout() {
		t.Error("Timeout() = false for wrapped deadline exceeded")
	}

	refused := &TransportError{Op: "ExchangeCode", Err: errors.New("connection refused")}
	if refused.Timeout() {
		t.Error("Timeout() = true for connection refused")
	}
}

func TestTransportError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &TransportError{Op: "ExchangeCode", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("errors.Is should see through TransportError")
	}
}

func TestProtocolError_Error(t *testing.T) {
	structured := &ProtocolError{StatusCode: 400, Code: "invalid_grant", Description: "token revoked"}
	if msg := structured.Error(); !strings.Contains(msg, "invalid_grant") || !strings.Contains(msg, "token revoked") {
		t.Errorf("Error() = %q, want structured fields", msg)
	}

	raw := &ProtocolError{StatusCode: 502, RawBody: "upstream exploded"}
	if msg := raw.Error(); !strings.Contains(msg, "upstream exploded") {
		t.Errorf("Error() = %q, want raw body", msg)
	}
}

func TestProtocolError_TransportSuccess(t *testing.T) {
	if (&ProtocolError{StatusCode: 200}).TransportSuccess() != true {
		t.Error("200 should be a transport success")
	}
	if (&ProtocolError{StatusCode: 400}).TransportSuccess() != false {
		t.Error("400 should not be a transport success")
	}
	if (&ProtocolError{StatusCode: 201}).TransportSuccess() != false {
		t.Error("201 should not be a transport success")
	}
}
