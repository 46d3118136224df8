package security

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// Auditor handles security event logging with PII protection. Session keys
// and user identifiers are hashed before logging.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditor creates a new security auditor.
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{logger: logger, enabled: enabled}
}

// Event represents a security audit event.
type Event struct {
	Type       string
	SessionKey string
	IPAddress  string
	Details    map[string]any
	Timestamp  time.Time
}

// LogEvent logs a security event with hashed identifiers.
func (a *Auditor) LogEvent(event Event) {
	if a == nil || !a.enabled {
		return
	}

	event.Timestamp = time.Now()

	a.logger.Info("security_audit",
		"event_type", event.Type,
		"session_key_hash", hashForLogging(event.SessionKey),
		"ip_address", event.IPAddress,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)
}

// LogLoginSucceeded logs a completed authorization-code exchange.
func (a *Auditor) LogLoginSucceeded(sessionKey, ipAddress string, refreshTokenIssued bool) {
	a.LogEvent(Event{
		Type:       "login_succeeded",
		SessionKey: sessionKey,
		IPAddress:  ipAddress,
		Details:    map[string]any{"refresh_token_issued": refreshTokenIssued},
	})
}

// LogLoginFailed logs a failed authorization-code exchange.
func (a *Auditor) LogLoginFailed(ipAddress, reason string) {
	a.LogEvent(Event{
		Type:      "login_failed",
		IPAddress: ipAddress,
		Details:   map[string]any{"reason": reason},
	})
}

// LogTokenRefreshed logs a successful refresh, noting whether the IdP
// rotated the refresh token.
func (a *Auditor) LogTokenRefreshed(sessionKey, ipAddress string, rotated bool) {
	a.LogEvent(Event{
		Type:       "token_refreshed",
		SessionKey: sessionKey,
		IPAddress:  ipAddress,
		Details:    map[string]any{"rotated": rotated},
	})
}

// LogRefreshFailed logs a failed refresh exchange.
func (a *Auditor) LogRefreshFailed(sessionKey, ipAddress, reason string) {
	a.LogEvent(Event{
		Type:       "refresh_failed",
		SessionKey: sessionKey,
		IPAddress:  ipAddress,
		Details:    map[string]any{"reason": reason},
	})
}

// LogValidationFailed logs an ID Token claim validation failure.
func (a *Auditor) LogValidationFailed(ipAddress string, reasons []string) {
	a.LogEvent(Event{
		Type:      "id_token_rejected",
		IPAddress: ipAddress,
		Details:   map[string]any{"reasons": reasons},
	})
}

// hashForLogging returns a short SHA-256 digest of a sensitive value, or
// empty for an empty value.
func hashForLogging(value string) string {
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:8])
}
