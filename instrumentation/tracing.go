package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
//
// Never record token material, authorization codes or client secrets in
// traces; only metadata such as outcomes, status codes and presence flags.
// Traces outlive requests and are readable by a wider audience than the
// session store.
const (
	// Flow attributes
	AttrFlowOutcome  = "oidc.flow.outcome"  // error, redirect or resume
	AttrGrantType    = "oidc.grant_type"    // authorization_code or refresh_token
	AttrSubject      = "oidc.subject"       // sub claim (non-secret identifier)
	AttrIssuer       = "oidc.issuer"        // iss claim
	AttrErrorReason  = "oidc.error_reason"  // why a flow failed
	AttrHTTPStatus   = "oidc.http_status"   // terminal status of an error outcome
	AttrRefreshState = "oidc.refresh_state" // absent, tombstone or present

	// Token metadata - presence flags only, never values
	AttrRefreshIssued  = "oidc.refresh_token.issued"  //nolint:gosec // boolean flag, not the token
	AttrRefreshRotated = "oidc.refresh_token.rotated" //nolint:gosec // boolean flag, not the token

	// Validation attributes
	AttrValidationValid = "oidc.validation.valid"
)

// Span names. Each wraps one run of the respective flow.
const (
	SpanCodeExchange = "oidc.flow.code_exchange"
	SpanRefresh      = "oidc.flow.refresh"
)

// RecordError records an error on a span with an error status (nil-safe).
func RecordError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks a span as successful (nil-safe).
func SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// SetSpanError sets an error status on a span (nil-safe).
func SetSpanError(span trace.Span, message string) {
	if span != nil {
		span.SetStatus(codes.Error, message)
	}
}

// SetSpanAttributes sets attributes on a span (nil-safe).
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span != nil {
		span.SetAttributes(attrs...)
	}
}

// AddFlowAttributes records the identity claims of a completed flow on its
// span (nil-safe). Subject and issuer are identifiers, not credentials.
func AddFlowAttributes(span trace.Span, subject, issuer string) {
	if subject != "" {
		SetSpanAttributes(span, attribute.String(AttrSubject, subject))
	}
	if issuer != "" {
		SetSpanAttributes(span, attribute.String(AttrIssuer, issuer))
	}
}

// AddOutcomeAttributes records how a flow ended on its span (nil-safe).
func AddOutcomeAttributes(span trace.Span, outcome string, status int) {
	SetSpanAttributes(span, attribute.String(AttrFlowOutcome, outcome))
	if status != 0 {
		SetSpanAttributes(span, attribute.Int(AttrHTTPStatus, status))
	}
}
