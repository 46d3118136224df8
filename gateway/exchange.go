package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tippexs/nginx-openid-connect/idp"
	"github.com/tippexs/nginx-openid-connect/instrumentation"
	"github.com/tippexs/nginx-openid-connect/storage"
)

// ExchangeInput carries everything the code-exchange flow needs from the
// inbound callback request.
type ExchangeInput struct {
	// Code is the authorization code, empty if the IdP reported an error
	// or the callback is malformed.
	Code string

	// ErrorParam and ErrorDescription are the IdP's error parameters from
	// the callback query, if any.
	ErrorParam       string
	ErrorDescription string

	// SessionKey is the opaque key the new session is stored under.
	SessionKey string

	// NonceCookie is the client's nonce cookie, empty if absent.
	NonceCookie string

	// ClientIP is used for audit logging only.
	ClientIP string
}

// Exchange runs the authorization-code exchange: code for tokens, claim
// validation, session write, redirect. Authorization codes are single-use,
// so every failure is terminal for the request and maps to an HTTP error;
// nothing is retried.
func (g *Gateway) Exchange(ctx context.Context, in ExchangeInput) Outcome {
	var span trace.Span
	if g.tracer != nil {
		ctx, span = g.tracer.Start(ctx, instrumentation.SpanCodeExchange)
		defer span.End()
		instrumentation.SetSpanAttributes(span,
			attribute.String(instrumentation.AttrGrantType, "authorization_code"))
	}

	if in.Code == "" {
		if in.ErrorParam != "" {
			reason := fmt.Sprintf("IdP reported authorization error: %s", in.ErrorParam)
			if in.ErrorDescription != "" {
				reason += ": " + in.ErrorDescription
			}
			return g.failExchange(ctx, span, in, "idp_error", http.StatusBadGateway, reason)
		}
		return g.failExchange(ctx, span, in, "missing_code",
			http.StatusBadGateway, "expected authorization code in callback, none received")
	}

	tokens, err := g.idp.ExchangeCode(ctx, in.Code)
	if err != nil {
		instrumentation.RecordError(span, err)
		outcome, status, reason := classifyExchangeError(err)
		return g.failExchange(ctx, span, in, outcome, status, reason)
	}

	claims, err := g.verifier.VerifyAndExtractClaims(ctx, tokens.IDToken)
	if err != nil {
		instrumentation.RecordError(span, err)
		return g.failExchange(ctx, span, in, "invalid_token",
			http.StatusInternalServerError, fmt.Sprintf("token verification failed: %v", err))
	}

	verdict := g.ValidateClaims(claims, ValidateOptions{
		NonceExpected: true,
		ClientNonce:   in.NonceCookie,
	})
	instrumentation.SetSpanAttributes(span,
		attribute.Bool(instrumentation.AttrValidationValid, verdict.Valid))
	if !verdict.Valid {
		g.metrics.RecordValidationFailure(ctx, "code_exchange")
		return g.failExchange(ctx, span, in, "invalid_token",
			http.StatusInternalServerError, "claim validation failed: "+strings.Join(verdict.Reasons, "; "))
	}

	if tokens.RefreshToken == "" {
		g.logger.Warn("IdP issued no refresh token, session will not be refreshable",
			"subject", claims.Subject)
	}

	session := &storage.Session{
		IDToken:      tokens.IDToken,
		RefreshToken: tokens.RefreshToken,
	}
	if err := g.store.SetSession(ctx, in.SessionKey, session); err != nil {
		instrumentation.RecordError(span, err)
		return g.failExchange(ctx, span, in, "store_error",
			http.StatusInternalServerError, fmt.Sprintf("failed to persist session: %v", err))
	}

	g.logger.Info("login completed",
		"subject", claims.Subject,
		"issuer", claims.Issuer,
		"refresh_token_issued", tokens.RefreshToken != "")
	g.auditor.LogLoginSucceeded(in.SessionKey, in.ClientIP, tokens.RefreshToken != "")
	g.metrics.RecordCodeExchange(ctx, "success")
	g.metrics.SessionEstablished(ctx)

	instrumentation.AddFlowAttributes(span, claims.Subject, claims.Issuer)
	instrumentation.SetSpanAttributes(span,
		attribute.Bool(instrumentation.AttrRefreshIssued, tokens.RefreshToken != ""))
	instrumentation.AddOutcomeAttributes(span, "redirect", 0)
	instrumentation.SetSpanSuccess(span)

	return redirectOutcome(g.config.PostLoginRedirect)
}

// failExchange logs and records a terminal code-exchange failure.
func (g *Gateway) failExchange(ctx context.Context, span trace.Span, in ExchangeInput, outcome string, status int, reason string) Outcome {
	g.logger.Error("code exchange failed", "reason", reason, "status", status)
	g.auditor.LogLoginFailed(in.ClientIP, reason)
	g.metrics.RecordCodeExchange(ctx, outcome)
	instrumentation.AddOutcomeAttributes(span, "error", status)
	instrumentation.SetSpanError(span, reason)
	return errorOutcome(status, reason)
}

// classifyExchangeError maps a token-endpoint error onto the exchange
// flow's status codes: 504 for an upstream timeout, 500 for an IdP
// rejection delivered inside a transport-level success, 502 for everything
// else.
func classifyExchangeError(err error) (outcome string, status int, reason string) {
	var transportErr *idp.TransportError
	if errors.As(err, &transportErr) {
		if transportErr.Timeout() {
			return "timeout", http.StatusGatewayTimeout,
				"timeout while contacting the IdP token endpoint: " + transportErr.Error()
		}
		return "transport", http.StatusBadGateway, transportErr.Error()
	}

	var protocolErr *idp.ProtocolError
	if errors.As(err, &protocolErr) {
		if protocolErr.TransportSuccess() {
			return "idp_error", http.StatusInternalServerError,
				"IdP rejected the code inside a success response: " + protocolErr.Error()
		}
		return "idp_error", http.StatusBadGateway, protocolErr.Error()
	}

	var malformedErr *idp.MalformedResponseError
	if errors.As(err, &malformedErr) {
		return "malformed", http.StatusBadGateway, malformedErr.Error()
	}

	return "transport", http.StatusBadGateway, err.Error()
}
