package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tippexs/nginx-openid-connect/idp"
	"github.com/tippexs/nginx-openid-connect/instrumentation"
	"github.com/tippexs/nginx-openid-connect/storage"
)

// RefreshInput carries everything the refresh flow needs for one expired
// session.
type RefreshInput struct {
	// SessionKey is the opaque key the session is stored under.
	SessionKey string

	// Session is the stored session holding the refresh token to spend.
	Session *storage.Session

	// OriginalRequestURI is where the client is redirected when the
	// refresh cannot complete, so the request replays and falls into a
	// fresh login.
	OriginalRequestURI string

	// ClientIP is used for audit logging only.
	ClientIP string
}

// Refresh spends the stored refresh token for a new ID Token and updates
// the session in place. Failures are never surfaced to the client: the
// refresh token is tombstoned and the client is redirected back to its
// original request, which replays without a session and re-enters the
// login flow. On success the original request resumes in process with no
// client round trip.
func (g *Gateway) Refresh(ctx context.Context, in RefreshInput) Outcome {
	var span trace.Span
	if g.tracer != nil {
		ctx, span = g.tracer.Start(ctx, instrumentation.SpanRefresh)
		defer span.End()
		instrumentation.SetSpanAttributes(span,
			attribute.String(instrumentation.AttrGrantType, "refresh_token"),
			attribute.String(instrumentation.AttrRefreshState, in.Session.RefreshTokenState().String()))
	}

	tokens, err := g.idp.ExchangeRefreshToken(ctx, in.Session.RefreshToken)
	if err != nil {
		instrumentation.RecordError(span, err)
		return g.abandonRefresh(ctx, span, in, describeRefreshError(err))
	}

	claims, err := g.verifier.VerifyAndExtractClaims(ctx, tokens.IDToken)
	if err != nil {
		instrumentation.RecordError(span, err)
		return g.abandonRefresh(ctx, span, in, fmt.Sprintf("token verification failed: %v", err))
	}

	verdict := g.ValidateClaims(claims, ValidateOptions{NonceExpected: false})
	instrumentation.SetSpanAttributes(span,
		attribute.Bool(instrumentation.AttrValidationValid, verdict.Valid))
	if !verdict.Valid {
		g.metrics.RecordValidationFailure(ctx, "refresh")
		return g.abandonRefresh(ctx, span, in, "claim validation failed: "+strings.Join(verdict.Reasons, "; "))
	}

	updated := in.Session.Clone()
	updated.IDToken = tokens.IDToken

	rotated := tokens.RefreshToken != "" && tokens.RefreshToken != in.Session.RefreshToken
	if rotated {
		g.logger.Info("IdP rotated the refresh token", "subject", claims.Subject)
		updated.RefreshToken = tokens.RefreshToken
	}

	if err := g.store.SetSession(ctx, in.SessionKey, updated); err != nil {
		instrumentation.RecordError(span, err)
		return g.abandonRefresh(ctx, span, in, fmt.Sprintf("failed to persist refreshed session: %v", err))
	}

	g.logger.Info("session refreshed",
		"subject", claims.Subject,
		"refresh_token_rotated", rotated)
	g.auditor.LogTokenRefreshed(in.SessionKey, in.ClientIP, rotated)
	g.metrics.RecordRefresh(ctx, "success")

	instrumentation.AddFlowAttributes(span, claims.Subject, claims.Issuer)
	instrumentation.SetSpanAttributes(span,
		attribute.Bool(instrumentation.AttrRefreshRotated, rotated))
	instrumentation.AddOutcomeAttributes(span, "resume", 0)
	instrumentation.SetSpanSuccess(span)

	return resumeOutcome()
}

// abandonRefresh tombstones the session's refresh token and sends the
// client back to its original request. The stale ID Token is kept in the
// session; it no longer validates, so the replayed request falls through
// into a fresh login.
func (g *Gateway) abandonRefresh(ctx context.Context, span trace.Span, in RefreshInput, reason string) Outcome {
	g.logger.Error("token refresh failed, forcing re-login", "reason", reason)
	instrumentation.AddOutcomeAttributes(span, "redirect", 0)
	instrumentation.SetSpanError(span, reason)

	invalidated := in.Session.Clone()
	invalidated.RefreshToken = storage.TombstoneRefreshToken
	if err := g.store.SetSession(ctx, in.SessionKey, invalidated); err != nil {
		g.logger.Error("failed to tombstone refresh token", "error", err)
	}

	g.auditor.LogRefreshFailed(in.SessionKey, in.ClientIP, reason)
	g.metrics.RecordRefresh(ctx, "failed")
	g.metrics.SessionInvalidated(ctx)

	return redirectOutcome(in.OriginalRequestURI)
}

// describeRefreshError renders a token-endpoint error for the refresh
// flow's logs. The structured 400-style rejection is reported with its
// OAuth error code; everything else with the error's own message. The
// mapping to a client response is the same either way.
func describeRefreshError(err error) string {
	var transportErr *idp.TransportError
	if errors.As(err, &transportErr) && transportErr.Timeout() {
		return "timeout while contacting the IdP token endpoint: " + transportErr.Error()
	}

	var protocolErr *idp.ProtocolError
	if errors.As(err, &protocolErr) && protocolErr.Code != "" {
		return fmt.Sprintf("IdP rejected the refresh token: %s: %s", protocolErr.Code, protocolErr.Description)
	}

	return err.Error()
}
