package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the values this gateway checks from an ID Token whose
// signature and expiry have already been verified. The gateway trusts
// their authenticity but not their semantic correctness. All values are
// carried as strings; IssuedAt keeps the exact textual form from the token
// so integer round-trip checks can reject fractional or garbage values.
type Claims struct {
	Audience string
	IssuedAt string
	Issuer   string
	Subject  string
	Nonce    string
}

// ClaimsVerifier is the external validation capability: it verifies the
// token's signature and expiry and returns the extracted claims. The
// gateway never re-implements signature verification; tests substitute a
// fake.
type ClaimsVerifier interface {
	VerifyAndExtractClaims(ctx context.Context, rawToken string) (*Claims, error)
}

// RemoteVerifier verifies tokens by calling an external validation
// endpoint (204 = valid, anything else = invalid) and extracting the
// claims locally from the already-verified token.
type RemoteVerifier struct {
	// ValidateURL is the endpoint performing signature+expiry checks.
	ValidateURL string

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client

	// RequestTimeout bounds the validation call when the caller's context
	// has no deadline (default 30s).
	RequestTimeout time.Duration
}

// VerifyAndExtractClaims implements ClaimsVerifier.
func (v *RemoteVerifier) VerifyAndExtractClaims(ctx context.Context, rawToken string) (*Claims, error) {
	const op = "RemoteVerifier.VerifyAndExtractClaims"
	if rawToken == "" {
		return nil, fmt.Errorf("%s: token is empty", op)
	}

	timeout := v.RequestTimeout
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.ValidateURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+rawToken)

	client := v.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent {
		return nil, fmt.Errorf("%s: token rejected with status %d", op, resp.StatusCode)
	}

	return ExtractClaims(rawToken)
}

// ExtractClaims pulls the checked claims out of a JWT without verifying
// its signature. Only call this with tokens the external validation
// capability has already accepted.
func ExtractClaims(rawToken string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithJSONNumber())

	token, _, err := parser.ParseUnverified(rawToken, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse id_token: %w", err)
	}
	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type %T", token.Claims)
	}

	return &Claims{
		Audience: audienceString(mapClaims["aud"]),
		IssuedAt: numericString(mapClaims["iat"]),
		Issuer:   stringClaim(mapClaims["iss"]),
		Subject:  stringClaim(mapClaims["sub"]),
		Nonce:    stringClaim(mapClaims["nonce"]),
	}, nil
}

// audienceString flattens the aud claim, which the JWT spec allows to be a
// string or an array of strings. A multi-valued audience flattens to a
// comma-joined string, which can never equal a configured single client ID
// and therefore fails the audience check downstream.
func audienceString(v any) string {
	switch aud := v.(type) {
	case string:
		return aud
	case []any:
		parts := make([]string, 0, len(aud))
		for _, item := range aud {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ",")
	default:
		return ""
	}
}

// numericString preserves the exact textual form of a numeric claim so the
// validator can run its integer round-trip check.
func numericString(v any) string {
	switch n := v.(type) {
	case json.Number:
		return n.String()
	case string:
		return n
	default:
		return ""
	}
}

func stringClaim(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
