package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tippexs/nginx-openid-connect/idp"
	"github.com/tippexs/nginx-openid-connect/idp/mock"
	"github.com/tippexs/nginx-openid-connect/security"
	"github.com/tippexs/nginx-openid-connect/storage"
	"github.com/tippexs/nginx-openid-connect/storage/memory"
)

func exchangeInput() ExchangeInput {
	return ExchangeInput{
		Code:        "auth-code-1",
		SessionKey:  "session-key-1",
		NonceCookie: testNonce,
		ClientIP:    "203.0.113.7",
	}
}

func TestExchangeSuccess(t *testing.T) {
	g, gw, _, store := newTestGateway(t)
	gw.ExchangeCodeFunc = func(context.Context, string) (*idp.TokenSet, error) {
		return &idp.TokenSet{IDToken: "new.id.token", RefreshToken: "refresh-1"}, nil
	}

	outcome := g.Exchange(context.Background(), exchangeInput())
	if outcome.Kind != KindRedirect {
		t.Fatalf("Kind = %v, want redirect (reason: %s)", outcome.Kind, outcome.Reason)
	}
	if outcome.Location != "/app" {
		t.Errorf("Location = %q, want /app", outcome.Location)
	}
	if outcome.Status != http.StatusFound {
		t.Errorf("Status = %d, want 302", outcome.Status)
	}
	if gw.LastCode != "auth-code-1" {
		t.Errorf("exchanged code = %q, want auth-code-1", gw.LastCode)
	}

	session, err := store.GetSession(context.Background(), "session-key-1")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if session.IDToken != "new.id.token" {
		t.Errorf("stored IDToken = %q", session.IDToken)
	}
	if session.RefreshToken != "refresh-1" {
		t.Errorf("stored RefreshToken = %q", session.RefreshToken)
	}
}

func TestExchangeSuccessWithoutRefreshToken(t *testing.T) {
	g, gw, _, store := newTestGateway(t)
	gw.ExchangeCodeFunc = func(context.Context, string) (*idp.TokenSet, error) {
		return &idp.TokenSet{IDToken: "new.id.token"}, nil
	}

	outcome := g.Exchange(context.Background(), exchangeInput())
	if outcome.Kind != KindRedirect {
		t.Fatalf("Kind = %v, want redirect (reason: %s)", outcome.Kind, outcome.Reason)
	}

	session, err := store.GetSession(context.Background(), "session-key-1")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if session.RefreshTokenState() != storage.RefreshTokenAbsent {
		t.Errorf("refresh token state = %v, want absent", session.RefreshTokenState())
	}
}

func TestExchangeEmptyCode(t *testing.T) {
	tests := []struct {
		name       string
		in         ExchangeInput
		wantStatus int
	}{
		{
			name:       "no code and no error parameter",
			in:         ExchangeInput{SessionKey: "k"},
			wantStatus: http.StatusBadGateway,
		},
		{
			name: "no code with error parameter",
			in: ExchangeInput{
				SessionKey:       "k",
				ErrorParam:       "access_denied",
				ErrorDescription: "user cancelled",
			},
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, gw, _, _ := newTestGateway(t)

			outcome := g.Exchange(context.Background(), tt.in)
			if outcome.Kind != KindError {
				t.Fatalf("Kind = %v, want error", outcome.Kind)
			}
			if outcome.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", outcome.Status, tt.wantStatus)
			}
			if outcome.Reason == "" {
				t.Error("Reason is empty")
			}
			if gw.Calls("ExchangeCode") != 0 {
				t.Error("token endpoint was called despite missing code")
			}
		})
	}
}

func TestExchangeErrorMapping(t *testing.T) {
	timeout := &idp.TransportError{Op: "ExchangeCode", Err: context.DeadlineExceeded}
	unreachable := &idp.TransportError{Op: "ExchangeCode", Err: errors.New("connection refused")}

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"timeout maps to 504", timeout, http.StatusGatewayTimeout},
		{"unreachable maps to 502", unreachable, http.StatusBadGateway},
		{
			"structured rejection maps to 502",
			&idp.ProtocolError{StatusCode: 400, Code: "invalid_grant", Description: "code expired"},
			http.StatusBadGateway,
		},
		{
			"unstructured rejection maps to 502",
			&idp.ProtocolError{StatusCode: 503, RawBody: "upstream unavailable"},
			http.StatusBadGateway,
		},
		{
			"error inside success response maps to 500",
			&idp.ProtocolError{StatusCode: 200, Code: "invalid_request"},
			http.StatusInternalServerError,
		},
		{
			"non-JSON success body maps to 502",
			&idp.MalformedResponseError{StatusCode: 200, Reason: "body is not valid JSON"},
			http.StatusBadGateway,
		},
		{
			"missing id_token maps to 502",
			&idp.MalformedResponseError{StatusCode: 200, Reason: "response carries no id_token"},
			http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, gw, verifier, _ := newTestGateway(t)
			gw.ExchangeCodeFunc = func(context.Context, string) (*idp.TokenSet, error) {
				return nil, tt.err
			}

			outcome := g.Exchange(context.Background(), exchangeInput())
			if outcome.Kind != KindError {
				t.Fatalf("Kind = %v, want error", outcome.Kind)
			}
			if outcome.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", outcome.Status, tt.wantStatus)
			}
			if verifier.CallCount != 0 {
				t.Error("verifier was called after a failed exchange")
			}
		})
	}
}

func TestExchangeInvalidClaims(t *testing.T) {
	g, _, verifier, store := newTestGateway(t)
	broken := validClaims()
	broken.Audience = "someone-else"
	verifier.VerifyFunc = func(context.Context, string) (*idp.Claims, error) {
		return broken, nil
	}

	outcome := g.Exchange(context.Background(), exchangeInput())
	if outcome.Kind != KindError {
		t.Fatalf("Kind = %v, want error", outcome.Kind)
	}
	if outcome.Status != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", outcome.Status)
	}

	if _, err := store.GetSession(context.Background(), "session-key-1"); !errors.Is(err, storage.ErrSessionNotFound) {
		t.Errorf("session was written despite invalid claims: err = %v", err)
	}
}

func TestExchangeVerifierRejectsToken(t *testing.T) {
	g, _, verifier, _ := newTestGateway(t)
	verifier.VerifyFunc = func(context.Context, string) (*idp.Claims, error) {
		return nil, errors.New("token rejected with status 403")
	}

	outcome := g.Exchange(context.Background(), exchangeInput())
	if outcome.Kind != KindError {
		t.Fatalf("Kind = %v, want error", outcome.Kind)
	}
	if outcome.Status != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", outcome.Status)
	}
}

func TestExchangeEmitsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	gw := mock.NewMockGateway()
	store := memory.New(slog.Default())
	g, err := New(Config{
		ExpectedAudience:  testAudience,
		PostLoginRedirect: "/app",
	}, gw, mock.NewMockVerifier(validClaims()), store, security.NewNonceHasher(testSecret),
		WithTracer(provider.Tracer("test")))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	gw.ExchangeCodeFunc = func(context.Context, string) (*idp.TokenSet, error) {
		return &idp.TokenSet{IDToken: "new.id.token", RefreshToken: "r"}, nil
	}

	outcome := g.Exchange(context.Background(), exchangeInput())
	if outcome.Kind != KindRedirect {
		t.Fatalf("Kind = %v, want redirect (reason: %s)", outcome.Kind, outcome.Reason)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	if spans[0].Name() != "oidc.flow.code_exchange" {
		t.Errorf("span name = %q", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("span status = %v, want Ok", spans[0].Status().Code)
	}
}

func TestExchangeFailureMarksSpanError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	gw := mock.NewMockGateway()
	gw.ExchangeCodeFunc = func(context.Context, string) (*idp.TokenSet, error) {
		return nil, &idp.TransportError{Op: "ExchangeCode", Err: context.DeadlineExceeded}
	}
	g, err := New(Config{
		ExpectedAudience:  testAudience,
		PostLoginRedirect: "/app",
	}, gw, mock.NewMockVerifier(validClaims()), memory.New(slog.Default()),
		security.NewNonceHasher(testSecret), WithTracer(provider.Tracer("test")))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	outcome := g.Exchange(context.Background(), exchangeInput())
	if outcome.Kind != KindError {
		t.Fatalf("Kind = %v, want error", outcome.Kind)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("span status = %v, want Error", spans[0].Status().Code)
	}
}

func TestExchangeCallsVerifierAfterTokenEndpoint(t *testing.T) {
	g, gw, verifier, _ := newTestGateway(t)

	var order []string
	gw.ExchangeCodeFunc = func(context.Context, string) (*idp.TokenSet, error) {
		order = append(order, "exchange")
		return &idp.TokenSet{IDToken: "new.id.token", RefreshToken: "r"}, nil
	}
	base := verifier.VerifyFunc
	verifier.VerifyFunc = func(ctx context.Context, raw string) (*idp.Claims, error) {
		order = append(order, "verify")
		return base(ctx, raw)
	}

	g.Exchange(context.Background(), exchangeInput())
	if len(order) != 2 || order[0] != "exchange" || order[1] != "verify" {
		t.Errorf("call order = %v, want [exchange verify]", order)
	}
}
