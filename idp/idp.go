package idp

import "context"

// TokenSet is the body of an IdP token-endpoint response. All fields are
// optional on the wire; a well-formed success carries at least IDToken.
type TokenSet struct {
	// IDToken is the signed ID Token JWT.
	IDToken string `json:"id_token,omitempty"`

	// RefreshToken is issued at the IdP's discretion; some providers only
	// issue one on the initial code exchange, some rotate it on refresh.
	RefreshToken string `json:"refresh_token,omitempty"`

	// Error and ErrorDescription carry a structured OAuth error. An error
	// field inside a transport-level success is still an IdP rejection.
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Gateway is the outbound operation pair against the IdP token endpoint.
//
// Both operations return a well-formed TokenSet (non-empty IDToken) or a
// typed error from this package: TransportError, ProtocolError or
// MalformedResponseError. Callers decide per flow how each class maps to a
// client response.
type Gateway interface {
	// ExchangeCode exchanges an authorization code for tokens.
	ExchangeCode(ctx context.Context, code string) (*TokenSet, error)

	// ExchangeRefreshToken exchanges a refresh token for a new TokenSet.
	ExchangeRefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error)
}
