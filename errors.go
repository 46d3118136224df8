package oidcconnect

import (
	"encoding/json"
	"net/http"
)

// Error codes sent to the client. Details of upstream failures stay in the
// logs; clients only see the category.
const (
	ErrorCodeLoginFailed       = "login_failed"
	ErrorCodeUpstreamTimeout   = "upstream_timeout"
	ErrorCodeServerError       = "server_error"
	ErrorCodeRateLimitExceeded = "rate_limit_exceeded"
	ErrorCodeInvalidToken      = "invalid_token"
)

// ErrorResponse is the JSON body of a terminal error.
type ErrorResponse struct {
	// Error is the error code.
	Error string `json:"error"`

	// ErrorDescription provides additional information.
	ErrorDescription string `json:"error_description,omitempty"`
}

// errorCodeForStatus maps a flow's terminal status onto a client-facing
// error code.
func errorCodeForStatus(status int) string {
	switch status {
	case http.StatusGatewayTimeout:
		return ErrorCodeUpstreamTimeout
	case http.StatusBadGateway:
		return ErrorCodeLoginFailed
	case http.StatusForbidden:
		return ErrorCodeInvalidToken
	default:
		return ErrorCodeServerError
	}
}

// writeError sends a JSON error response.
func (h *Handler) writeError(w http.ResponseWriter, code, description string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:            code,
		ErrorDescription: description,
	}); err != nil {
		h.logger.Error("failed to write error response", "error", err)
	}
}
