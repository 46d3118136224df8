package oidcconnect

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/tippexs/nginx-openid-connect/gateway"
	"github.com/tippexs/nginx-openid-connect/idp"
	"github.com/tippexs/nginx-openid-connect/instrumentation"
	"github.com/tippexs/nginx-openid-connect/internal/util"
	"github.com/tippexs/nginx-openid-connect/security"
	"github.com/tippexs/nginx-openid-connect/storage"

	"github.com/google/uuid"
)

// Handler is the HTTP surface of the gateway: the code-exchange callback,
// the validation endpoint and the wrapping middleware.
type Handler struct {
	config   Config
	gateway  *gateway.Gateway
	verifier idp.ClaimsVerifier
	store    storage.SessionStore
	hasher   *security.NonceHasher
	auditor  *security.Auditor
	limiter  *security.RateLimiter
	metrics  *instrumentation.Metrics
	oauth    *oauth2.Config
	tracer   trace.Tracer
	logger   *slog.Logger

	// idpOverride replaces the HTTP token-endpoint gateway when set.
	idpOverride idp.Gateway
}

// Option customizes a Handler.
type Option func(*Handler)

// WithIdPGateway overrides the token-endpoint gateway. Tests use this to
// substitute a mock.
func WithIdPGateway(gw idp.Gateway) Option {
	return func(h *Handler) { h.idpOverride = gw }
}

// WithClaimsVerifier overrides the external claim verification capability.
func WithClaimsVerifier(v idp.ClaimsVerifier) Option {
	return func(h *Handler) { h.verifier = v }
}

// WithMetrics enables metric recording.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithTracer enables span creation around the flows.
func WithTracer(tracer trace.Tracer) Option {
	return func(h *Handler) { h.tracer = tracer }
}

// New creates a Handler backed by the given session store.
func New(config Config, store storage.SessionStore, opts ...Option) (*Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}

	h := &Handler{
		config:  config,
		store:   store,
		hasher:  security.NewNonceHasher(config.HMACSecret),
		auditor: security.NewAuditor(config.Logger, config.AuditEnabled),
		logger:  config.Logger,
		oauth: &oauth2.Config{
			ClientID:     config.IdP.ClientID,
			ClientSecret: config.IdP.ClientSecret,
			RedirectURL:  config.IdP.RedirectURL,
			Scopes:       config.IdP.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  config.IdP.AuthorizationEndpoint,
				TokenURL: config.IdP.TokenURL,
			},
		},
	}
	if config.RateLimit.Rate > 0 {
		h.limiter = security.NewRateLimiter(config.RateLimit.Rate, config.RateLimit.Burst, config.Logger)
	}
	for _, opt := range opts {
		opt(h)
	}

	idpGW := h.idpOverride
	if idpGW == nil {
		gw, err := idp.NewHTTPGateway(idp.Config{
			TokenURL:       config.IdP.TokenURL,
			ClientID:       config.IdP.ClientID,
			ClientSecret:   config.IdP.ClientSecret,
			RedirectURL:    config.IdP.RedirectURL,
			HTTPClient:     config.HTTPClient,
			RequestTimeout: config.IdP.RequestTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build IdP gateway: %w", err)
		}
		idpGW = gw
	}
	if h.verifier == nil {
		h.verifier = &idp.RemoteVerifier{
			ValidateURL:    config.IdP.ValidateURL,
			HTTPClient:     config.HTTPClient,
			RequestTimeout: config.IdP.RequestTimeout,
		}
	}

	g, err := gateway.New(gateway.Config{
		ExpectedAudience:  config.ExpectedAudience,
		PostLoginRedirect: config.PostLoginRedirect,
	}, idpGW, h.verifier, store, h.hasher,
		gateway.WithLogger(h.logger),
		gateway.WithAuditor(h.auditor),
		gateway.WithMetrics(h.metrics),
		gateway.WithTracer(h.tracer),
	)
	if err != nil {
		return nil, err
	}
	h.gateway = g

	return h, nil
}

// Close releases background resources.
func (h *Handler) Close() {
	if h.limiter != nil {
		h.limiter.Stop()
	}
}

// ServeCodeExchange handles the IdP callback: it exchanges the
// authorization code, establishes the session and redirects the client to
// the post-login target. Every failure is terminal; codes are single-use.
func (h *Handler) ServeCodeExchange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, ErrorCodeServerError, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	clientIP := util.ClientIP(r, h.config.TrustProxy)
	if h.limiter != nil && !h.limiter.Allow(clientIP) {
		h.writeError(w, ErrorCodeRateLimitExceeded, "too many requests", http.StatusTooManyRequests)
		return
	}
	security.SetAuthResponseHeaders(w)

	nonceCookie := h.cookieValue(r, h.config.Cookies.NonceName)

	// The state parameter is the hashed nonce, so the callback can check
	// it against the cookie without server-side state. A login started
	// here always sets the cookie and sends the state, so a callback
	// carrying the cookie but no matching state did not come back from
	// our own redirect.
	if nonceCookie != "" {
		state := r.URL.Query().Get("state")
		expected := h.hasher.Hash(nonceCookie)
		if subtle.ConstantTimeCompare([]byte(state), []byte(expected)) != 1 {
			h.logger.Warn("state parameter missing or does not match nonce cookie", "ip", clientIP)
			h.auditor.LogLoginFailed(clientIP, "state mismatch")
			h.writeError(w, ErrorCodeLoginFailed, "state mismatch", http.StatusForbidden)
			return
		}
	}

	sessionKey := uuid.NewString()
	query := r.URL.Query()
	outcome := h.gateway.Exchange(r.Context(), gateway.ExchangeInput{
		Code:             query.Get("code"),
		ErrorParam:       query.Get("error"),
		ErrorDescription: query.Get("error_description"),
		SessionKey:       sessionKey,
		NonceCookie:      nonceCookie,
		ClientIP:         clientIP,
	})

	switch outcome.Kind {
	case gateway.KindRedirect:
		h.setCookie(w, h.config.Cookies.SessionName, sessionKey)
		http.Redirect(w, r, outcome.Location, outcome.Status)
	default:
		h.writeError(w, errorCodeForStatus(outcome.Status), "authentication failed", outcome.Status)
	}
}

// ServeValidate verifies the Bearer token of the request and answers 204
// when its signature and claims are acceptable, 403 otherwise.
func (h *Handler) ServeValidate(w http.ResponseWriter, r *http.Request) {
	security.SetAuthResponseHeaders(w)

	token := bearerToken(r)
	if token == "" {
		h.writeError(w, ErrorCodeInvalidToken, "missing bearer token", http.StatusForbidden)
		return
	}

	claims, err := h.verifier.VerifyAndExtractClaims(r.Context(), token)
	if err != nil {
		h.logger.Info("token verification failed", "error", err)
		h.writeError(w, ErrorCodeInvalidToken, "token verification failed", http.StatusForbidden)
		return
	}

	verdict := h.gateway.ValidateClaims(claims, gateway.ValidateOptions{
		NonceExpected: true,
		ClientNonce:   h.cookieValue(r, h.config.Cookies.NonceName),
	})
	if !verdict.Valid {
		clientIP := util.ClientIP(r, h.config.TrustProxy)
		h.auditor.LogValidationFailed(clientIP, verdict.Reasons)
		h.metrics.RecordValidationFailure(r.Context(), "validate_endpoint")
		h.writeError(w, ErrorCodeInvalidToken, strings.Join(verdict.Reasons, "; "), http.StatusForbidden)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Wrap authenticates every request before handing it to next. A valid
// session passes through, an expired one is refreshed in place, anything
// else starts a fresh login at the IdP.
func (h *Handler) Wrap(next http.Handler) http.Handler {
	return security.RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionKey := h.cookieValue(r, h.config.Cookies.SessionName)
		if sessionKey == "" {
			h.startLogin(w, r)
			return
		}

		session, err := h.store.GetSession(r.Context(), sessionKey)
		if err != nil {
			if !errors.Is(err, storage.ErrSessionNotFound) {
				h.logger.Error("session lookup failed", "error", err)
			}
			h.startLogin(w, r)
			return
		}

		if _, err := h.verifier.VerifyAndExtractClaims(r.Context(), session.IDToken); err == nil {
			next.ServeHTTP(w, r)
			return
		}

		if session.RefreshTokenState() != storage.RefreshTokenPresent {
			h.logger.Debug("session expired without usable refresh token",
				"state", session.RefreshTokenState().String(),
				"correlation_id", security.CorrelationID(h.hasher, security.GetRequestID(r.Context())))
			h.startLogin(w, r)
			return
		}

		outcome := h.gateway.Refresh(r.Context(), gateway.RefreshInput{
			SessionKey:         sessionKey,
			Session:            session,
			OriginalRequestURI: r.URL.RequestURI(),
			ClientIP:           util.ClientIP(r, h.config.TrustProxy),
		})
		switch outcome.Kind {
		case gateway.KindResume:
			next.ServeHTTP(w, r)
		case gateway.KindRedirect:
			http.Redirect(w, r, outcome.Location, outcome.Status)
		default:
			h.writeError(w, errorCodeForStatus(outcome.Status), "authentication failed", outcome.Status)
		}
	}))
}

// startLogin sends the client to the IdP's authorization endpoint with a
// fresh nonce. The nonce cookie keeps the raw value; the IdP binds its
// keyed hash into the ID Token, and the same hash doubles as the state
// parameter.
func (h *Handler) startLogin(w http.ResponseWriter, r *http.Request) {
	nonce := security.GenerateRequestID()
	hashed := h.hasher.Hash(nonce)

	h.setCookie(w, h.config.Cookies.NonceName, nonce)
	security.SetAuthResponseHeaders(w)

	authURL := h.oauth.AuthCodeURL(hashed, oauth2.SetAuthURLParam("nonce", hashed))
	h.logger.Info("starting login",
		"path", util.SafeTruncate(r.URL.Path, 128),
		"correlation_id", security.CorrelationID(h.hasher, security.GetRequestID(r.Context())))
	h.metrics.RecordLoginRedirect(r.Context())

	http.Redirect(w, r, authURL, http.StatusFound)
}

func (h *Handler) setCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.config.Cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return ""
	}
	return auth[len(prefix):]
}
