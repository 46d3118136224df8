package oidcconnect

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Default cookie names. Overridable for deployments that already use
// these names for something else.
const (
	DefaultSessionCookieName = "auth_token"
	DefaultNonceCookieName   = "auth_nonce"
)

// Config holds the handler configuration.
type Config struct {
	// IdP holds the Identity Provider endpoints and client credentials.
	IdP IdPConfig

	// ExpectedAudience is the client identifier the ID Token's aud claim
	// must equal. Defaults to IdP.ClientID.
	ExpectedAudience string

	// PostLoginRedirect is where the client is sent after a completed
	// login. Default "/".
	PostLoginRedirect string

	// HMACSecret keys the nonce hash and the request-correlation hash
	// (required). Shared with any other gateway instances serving the
	// same cookie domain.
	HMACSecret string

	// Cookies holds the cookie names and attributes.
	Cookies CookieConfig

	// RateLimit holds rate limiting for the callback endpoint.
	RateLimit RateLimitConfig

	// AuditEnabled turns on security audit logging.
	AuditEnabled bool

	// TrustProxy enables trusting X-Forwarded-For and X-Real-IP headers.
	// Only enable behind a trusted reverse proxy.
	TrustProxy bool

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger

	// HTTPClient is a custom HTTP client for IdP requests. If not
	// provided, uses the default HTTP client.
	HTTPClient *http.Client
}

// IdPConfig holds the Identity Provider endpoints and credentials.
type IdPConfig struct {
	// AuthorizationEndpoint is where fresh logins are redirected (required).
	AuthorizationEndpoint string

	// TokenURL is the token endpoint for code and refresh exchanges (required).
	TokenURL string

	// ValidateURL is the endpoint performing signature and expiry
	// verification of ID Tokens (required). Answers 204 for a valid
	// token.
	ValidateURL string

	// ClientID is the relying party's client identifier (required).
	ClientID string

	// ClientSecret authenticates token-endpoint calls (required).
	ClientSecret string

	// RedirectURL is this gateway's callback URL registered at the IdP
	// (required).
	RedirectURL string

	// Scopes requested during login. Default: openid.
	Scopes []string

	// RequestTimeout bounds each outbound IdP call. Default 30s.
	RequestTimeout time.Duration
}

// CookieConfig holds the names and attributes of the cookies this gateway
// issues.
type CookieConfig struct {
	// SessionName is the opaque session cookie. Default "auth_token".
	SessionName string

	// NonceName is the per-login nonce cookie. Default "auth_nonce".
	NonceName string

	// Secure marks issued cookies Secure. Enable everywhere TLS
	// terminates in front of or at this gateway.
	Secure bool
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	// Rate is requests per second allowed per IP. Zero disables limiting.
	Rate int

	// Burst is the maximum burst size allowed per IP.
	Burst int
}

// Validate checks required fields and applies defaults.
func (c *Config) Validate() error {
	if c.IdP.AuthorizationEndpoint == "" {
		return fmt.Errorf("IdP authorization endpoint is required")
	}
	if c.IdP.TokenURL == "" {
		return fmt.Errorf("IdP token URL is required")
	}
	if c.IdP.ValidateURL == "" {
		return fmt.Errorf("IdP validate URL is required")
	}
	if c.IdP.ClientID == "" {
		return fmt.Errorf("client ID is required")
	}
	if c.IdP.ClientSecret == "" {
		return fmt.Errorf("client secret is required")
	}
	if c.IdP.RedirectURL == "" {
		return fmt.Errorf("redirect URL is required")
	}
	if c.HMACSecret == "" {
		return fmt.Errorf("HMAC secret is required")
	}

	if len(c.IdP.Scopes) == 0 {
		c.IdP.Scopes = []string{"openid"}
	}
	if c.ExpectedAudience == "" {
		c.ExpectedAudience = c.IdP.ClientID
	}
	if c.PostLoginRedirect == "" {
		c.PostLoginRedirect = "/"
	}
	if c.Cookies.SessionName == "" {
		c.Cookies.SessionName = DefaultSessionCookieName
	}
	if c.Cookies.NonceName == "" {
		c.Cookies.NonceName = DefaultNonceCookieName
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}
