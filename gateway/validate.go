package gateway

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tippexs/nginx-openid-connect/idp"
)

// ValidateOptions controls claim validation for one token.
type ValidateOptions struct {
	// NonceExpected is true for a fresh login, where the token must carry
	// the hashed client nonce. Refreshed tokens carry no nonce and the
	// check is skipped.
	NonceExpected bool

	// ClientNonce is the nonce cookie value from the original
	// authorization request, empty if the client sent none.
	ClientNonce string
}

// Verdict is the result of validating one set of claims. Reasons lists
// every violated check, not just the first.
type Verdict struct {
	Valid   bool
	Reasons []string
}

// ValidateClaims checks the claims of a signature-verified ID Token:
// mandatory-claim presence, iat sanity, audience equality and, on fresh
// logins, the nonce binding. Deterministic for identical inputs; all
// checks run even after the first failure so the verdict carries complete
// diagnostics.
func (g *Gateway) ValidateClaims(claims *idp.Claims, opts ValidateOptions) Verdict {
	var reasons []string

	var missing []string
	if claims.Audience == "" {
		missing = append(missing, "aud")
	}
	if claims.IssuedAt == "" {
		missing = append(missing, "iat")
	}
	if claims.Issuer == "" {
		missing = append(missing, "iss")
	}
	if claims.Subject == "" {
		missing = append(missing, "sub")
	}
	if len(missing) > 0 {
		reasons = append(reasons, "missing mandatory claims: "+strings.Join(missing, ", "))
	}

	if claims.IssuedAt != "" && !isPositiveInteger(claims.IssuedAt) {
		reasons = append(reasons, fmt.Sprintf("iat claim %q is not a positive integer", claims.IssuedAt))
	}

	if claims.Audience != "" && claims.Audience != g.config.ExpectedAudience {
		reasons = append(reasons, fmt.Sprintf("aud claim %q does not match the configured client ID", claims.Audience))
	}

	if opts.NonceExpected {
		expected := ""
		if opts.ClientNonce != "" {
			expected = g.hasher.Hash(opts.ClientNonce)
		}
		if claims.Nonce != expected {
			reasons = append(reasons, "nonce claim does not match the hashed client nonce")
		}
	} else {
		g.logger.Debug("nonce check skipped", "reason", "token obtained via refresh")
	}

	return Verdict{Valid: len(reasons) == 0, Reasons: reasons}
}

// isPositiveInteger reports whether s is the canonical form of an integer
// >= 1. The round trip through ParseInt/FormatInt rejects fractional
// values, leading zeros and other non-canonical forms.
func isPositiveInteger(s string) bool {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return false
	}
	return strconv.FormatInt(n, 10) == s && n >= 1
}
