package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// defaultRequestTimeout is applied when the caller's context has no
	// deadline of its own.
	defaultRequestTimeout = 30 * time.Second

	// maxResponseBody caps how much of a token response is read (64KB).
	maxResponseBody = 64 * 1024

	// rawBodyLogLimit caps how much of an unparseable body is carried in
	// error messages and logs.
	rawBodyLogLimit = 512
)

// Config holds the token-endpoint configuration for HTTPGateway.
type Config struct {
	// TokenURL is the IdP token endpoint (required).
	TokenURL string

	// ClientID and ClientSecret authenticate the relying party at the
	// token endpoint (HTTP basic, per RFC 6749 §2.3.1).
	ClientID     string
	ClientSecret string

	// RedirectURL is the redirect_uri bound to the authorization code.
	RedirectURL string

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client

	// RequestTimeout bounds each token-endpoint call when the caller's
	// context has no deadline (default 30s).
	RequestTimeout time.Duration
}

// HTTPGateway implements Gateway against a configured token endpoint.
type HTTPGateway struct {
	cfg        Config
	httpClient *http.Client
}

// NewHTTPGateway creates a token-endpoint client.
func NewHTTPGateway(cfg Config) (*HTTPGateway, error) {
	if cfg.TokenURL == "" {
		return nil, fmt.Errorf("token URL is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &HTTPGateway{cfg: cfg, httpClient: client}, nil
}

// ExchangeCode exchanges an authorization code for tokens.
func (g *HTTPGateway) ExchangeCode(ctx context.Context, code string) (*TokenSet, error) {
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {g.cfg.RedirectURL},
	}
	return g.do(ctx, "ExchangeCode", form)
}

// ExchangeRefreshToken exchanges a refresh token for a new TokenSet.
func (g *HTTPGateway) ExchangeRefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	return g.do(ctx, "ExchangeRefreshToken", form)
}

// ensureContextTimeout adds the configured deadline when the caller's
// context has none.
func (g *HTTPGateway) ensureContextTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.cfg.RequestTimeout)
}

// do performs one token-endpoint call and classifies the outcome into the
// package's error taxonomy. The second outbound step of each flow (claim
// validation) must not start until this call has fully resolved, so the
// response body is always read to completion here.
func (g *HTTPGateway) do(ctx context.Context, op string, form url.Values) (*TokenSet, error) {
	ctx, cancel := g.ensureContextTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build token request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(url.QueryEscape(g.cfg.ClientID), url.QueryEscape(g.cfg.ClientSecret))

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		var ts TokenSet
		if json.Unmarshal(body, &ts) == nil && ts.Error != "" {
			return nil, &ProtocolError{
				StatusCode:  resp.StatusCode,
				Code:        ts.Error,
				Description: ts.ErrorDescription,
			}
		}
		return nil, &ProtocolError{
			StatusCode: resp.StatusCode,
			RawBody:    truncate(string(body), rawBodyLogLimit),
		}
	}

	var ts TokenSet
	if err := json.Unmarshal(body, &ts); err != nil {
		return nil, &MalformedResponseError{
			StatusCode: resp.StatusCode,
			Reason:     "token response is not valid JSON",
		}
	}
	if ts.Error != "" {
		// Transport-level success carrying an OAuth error body.
		return nil, &ProtocolError{
			StatusCode:  resp.StatusCode,
			Code:        ts.Error,
			Description: ts.ErrorDescription,
		}
	}
	if ts.IDToken == "" {
		return nil, &MalformedResponseError{
			StatusCode: resp.StatusCode,
			Reason:     "token response missing id_token",
		}
	}
	return &ts, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
