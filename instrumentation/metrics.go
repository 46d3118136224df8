package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the gateway. A nil *Metrics is
// valid and all recording helpers on it are no-ops.
type Metrics struct {
	codeExchanges      metric.Int64Counter
	tokenRefreshes     metric.Int64Counter
	validationFailures metric.Int64Counter
	loginRedirects     metric.Int64Counter
	idpRequestDuration metric.Float64Histogram
	activeSessions     metric.Int64UpDownCounter
}

func newMetrics(inst *Instrumentation) (*Metrics, error) {
	meter := inst.Meter("gateway")
	m := &Metrics{}
	var err error

	m.codeExchanges, err = meter.Int64Counter(
		"oidc.code_exchanges",
		metric.WithDescription("Total authorization code exchanges"),
		metric.WithUnit("{exchange}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create code exchange counter: %w", err)
	}

	m.tokenRefreshes, err = meter.Int64Counter(
		"oidc.token_refreshes",
		metric.WithDescription("Total refresh token exchanges"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token refresh counter: %w", err)
	}

	m.validationFailures, err = meter.Int64Counter(
		"oidc.validation_failures",
		metric.WithDescription("Total ID token validation failures"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create validation failure counter: %w", err)
	}

	m.loginRedirects, err = meter.Int64Counter(
		"oidc.login_redirects",
		metric.WithDescription("Total redirects to the IdP authorization endpoint"),
		metric.WithUnit("{redirect}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create login redirect counter: %w", err)
	}

	m.idpRequestDuration, err = meter.Float64Histogram(
		"oidc.idp_request_duration",
		metric.WithDescription("Duration of requests to the IdP token endpoint"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create IdP request duration histogram: %w", err)
	}

	m.activeSessions, err = meter.Int64UpDownCounter(
		"oidc.active_sessions",
		metric.WithDescription("Number of sessions currently established"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active session counter: %w", err)
	}

	return m, nil
}

// RecordCodeExchange records a completed authorization code exchange with
// its outcome ("success", "idp_error", "timeout", "transport", "malformed").
func (m *Metrics) RecordCodeExchange(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.codeExchanges.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

// RecordRefresh records a completed refresh token exchange with its outcome.
func (m *Metrics) RecordRefresh(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.tokenRefreshes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

// RecordValidationFailure records a failed ID token validation with the
// first failing check as reason.
func (m *Metrics) RecordValidationFailure(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.validationFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}

// RecordLoginRedirect records a redirect to the IdP authorization endpoint.
func (m *Metrics) RecordLoginRedirect(ctx context.Context) {
	if m == nil {
		return
	}
	m.loginRedirects.Add(ctx, 1)
}

// RecordIdPRequest records the duration of a token endpoint request.
func (m *Metrics) RecordIdPRequest(ctx context.Context, grantType string, duration time.Duration) {
	if m == nil {
		return
	}
	m.idpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("grant_type", grantType),
	))
}

// SessionEstablished increments the active session gauge.
func (m *Metrics) SessionEstablished(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeSessions.Add(ctx, 1)
}

// SessionInvalidated decrements the active session gauge.
func (m *Metrics) SessionInvalidated(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeSessions.Add(ctx, -1)
}
