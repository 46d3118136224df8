// Package util provides small shared helpers that don't fit into
// domain-specific packages.
package util

import (
	"net"
	"net/http"
	"strings"
)

// SafeTruncate safely truncates a string to maxLen characters without
// panicking. Used when logging sensitive data like tokens, where only a
// prefix should be shown.
func SafeTruncate(s string, maxLen int) string {
	if maxLen < 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// ClientIP extracts the client IP for rate limiting and audit logging.
// When trustProxy is set, X-Forwarded-For (first hop) and X-Real-IP are
// honored; otherwise only the connection's remote address is used, since
// forwarded headers are trivially spoofable without a trusted proxy in
// front.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first := strings.TrimSpace(strings.Split(fwd, ",")[0])
			if net.ParseIP(first) != nil {
				return first
			}
		}
		if real := r.Header.Get("X-Real-IP"); real != "" {
			if net.ParseIP(real) != nil {
				return real
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
