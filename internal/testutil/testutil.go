// Package testutil provides testing utilities shared across the gateway's
// test suites: an in-process fake IdP token endpoint and unsigned JWT
// construction for claim-extraction tests.
package testutil

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// MintIDToken builds a structurally valid JWT carrying the given claims.
// The signature segment is garbage: these tokens are only for code paths
// where signature verification is delegated elsewhere or faked.
func MintIDToken(t *testing.T, claims map[string]any) string {
	t.Helper()

	header := map[string]any{"alg": "RS256", "typ": "JWT"}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		t.Fatalf("failed to marshal JWT header: %v", err)
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("failed to marshal JWT claims: %v", err)
	}

	return fmt.Sprintf("%s.%s.%s",
		base64.RawURLEncoding.EncodeToString(headerJSON),
		base64.RawURLEncoding.EncodeToString(claimsJSON),
		base64.RawURLEncoding.EncodeToString([]byte("test-signature")))
}

// FakeIdP is an in-process IdP token endpoint with scripted responses.
type FakeIdP struct {
	// Status and Body control the next token-endpoint response.
	Status int
	Body   string

	// ContentType overrides the response content type (default JSON).
	ContentType string

	// Delay is slept before answering, for timeout tests.
	Delay time.Duration

	mu       sync.Mutex
	requests []FakeIdPRequest

	Server *httptest.Server
}

// FakeIdPRequest captures one token-endpoint call.
type FakeIdPRequest struct {
	GrantType    string
	Code         string
	RefreshToken string
	Username     string
}

// NewFakeIdP starts a fake token endpoint answering with the given status
// and body until rescripted. Close is registered on the test cleanup.
func NewFakeIdP(t *testing.T, status int, body string) *FakeIdP {
	t.Helper()

	f := &FakeIdP{Status: status, Body: body}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handleToken))
	t.Cleanup(f.Server.Close)
	return f
}

// TokenURL returns the fake token endpoint URL.
func (f *FakeIdP) TokenURL() string {
	return f.Server.URL
}

// Script changes the response for subsequent calls.
func (f *FakeIdP) Script(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Status = status
	f.Body = body
}

// Requests returns the captured token-endpoint calls.
func (f *FakeIdP) Requests() []FakeIdPRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeIdPRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

func (f *FakeIdP) handleToken(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	username, _, _ := r.BasicAuth()

	f.mu.Lock()
	f.requests = append(f.requests, FakeIdPRequest{
		GrantType:    r.PostFormValue("grant_type"),
		Code:         r.PostFormValue("code"),
		RefreshToken: r.PostFormValue("refresh_token"),
		Username:     username,
	})
	status := f.Status
	body := f.Body
	contentType := f.ContentType
	delay := f.Delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// NewFakeValidator starts a validation endpoint that accepts every token
// with 204 when valid is true and rejects with 403 otherwise.
func NewFakeValidator(t *testing.T, valid bool) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if valid {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(server.Close)
	return server
}
