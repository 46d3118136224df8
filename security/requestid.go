package security

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"regexp"
)

// requestIDContextKey is the context key for storing request IDs
type requestIDContextKey struct{}

// RequestIDHeader is the HTTP header for request IDs
const RequestIDHeader = "X-Request-ID"

// requestIDPattern validates request IDs to prevent header injection.
// Allows alphanumeric, hyphens and underscores (1-128 chars), which covers
// the formats emitted by common upstream proxies.
var requestIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,128}$`)

// GenerateRequestID generates a cryptographically secure random request ID:
// 16 bytes of entropy encoded as a 22-character unpadded base64url string.
//
// The function panics if the system RNG fails, which indicates a critical
// system-level failure.
func GenerateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand.Read failed: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDContextKey{}).(string); ok {
		return requestID
	}
	return ""
}

// isValidRequestID reports whether an upstream-supplied request ID is safe
// to propagate (no CRLF injection, bounded length).
func isValidRequestID(requestID string) bool {
	return requestIDPattern.MatchString(requestID)
}

// CorrelationID derives the log-correlation identifier for a request ID
// using the shared keyed hash. The raw request ID stays out of downstream
// logs; only the derived value is recorded, and any party holding the
// shared secret can recompute it.
func CorrelationID(hasher *NonceHasher, requestID string) string {
	if hasher == nil {
		return requestID
	}
	return hasher.Hash(requestID)
}

// RequestIDMiddleware generates and propagates request IDs. Valid IDs from
// upstream proxies are preserved for audit trail continuity; missing or
// invalid ones are replaced. The ID is echoed in the response headers and
// stored on the request context.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || !isValidRequestID(requestID) {
			requestID = GenerateRequestID()
		}

		w.Header().Set(RequestIDHeader, requestID)

		ctx := WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
