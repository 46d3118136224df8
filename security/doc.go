// Package security provides the security primitives used by the gateway:
// the keyed nonce hash, request-ID correlation, per-client rate limiting,
// audit logging, and secure response headers.
package security
