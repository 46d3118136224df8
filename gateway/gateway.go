package gateway

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/tippexs/nginx-openid-connect/idp"
	"github.com/tippexs/nginx-openid-connect/instrumentation"
	"github.com/tippexs/nginx-openid-connect/security"
	"github.com/tippexs/nginx-openid-connect/storage"
)

// Config holds the gateway's flow configuration.
type Config struct {
	// ExpectedAudience is the client identifier the ID Token's aud claim
	// must equal exactly.
	ExpectedAudience string

	// PostLoginRedirect is where the client is sent after a successful
	// code exchange.
	PostLoginRedirect string
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ExpectedAudience == "" {
		return fmt.Errorf("expected audience is required")
	}
	if c.PostLoginRedirect == "" {
		return fmt.Errorf("post-login redirect target is required")
	}
	return nil
}

// Gateway orchestrates the code-exchange and refresh flows against an IdP
// and a shared session store.
type Gateway struct {
	config   Config
	idp      idp.Gateway
	verifier idp.ClaimsVerifier
	store    storage.SessionStore
	hasher   *security.NonceHasher
	auditor  *security.Auditor
	metrics  *instrumentation.Metrics
	tracer   trace.Tracer
	logger   *slog.Logger
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) { g.logger = logger }
}

// WithAuditor enables security audit logging.
func WithAuditor(auditor *security.Auditor) Option {
	return func(g *Gateway) { g.auditor = auditor }
}

// WithMetrics enables metric recording.
func WithMetrics(metrics *instrumentation.Metrics) Option {
	return func(g *Gateway) { g.metrics = metrics }
}

// WithTracer enables span creation around the flows.
func WithTracer(tracer trace.Tracer) Option {
	return func(g *Gateway) { g.tracer = tracer }
}

// New creates a Gateway. All four collaborators are required; auditing,
// metrics and the logger are optional.
func New(config Config, gw idp.Gateway, verifier idp.ClaimsVerifier, store storage.SessionStore, hasher *security.NonceHasher, opts ...Option) (*Gateway, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gateway config: %w", err)
	}
	if gw == nil {
		return nil, fmt.Errorf("idp gateway is required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("claims verifier is required")
	}
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("nonce hasher is required")
	}

	g := &Gateway{
		config:   config,
		idp:      gw,
		verifier: verifier,
		store:    store,
		hasher:   hasher,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}
