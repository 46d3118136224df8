// Package mock provides mock implementations of the idp interfaces for
// testing.
package mock

import (
	"context"
	"sync"

	"github.com/tippexs/nginx-openid-connect/idp"
)

// MockGateway is a mock implementation of idp.Gateway.
type MockGateway struct {
	// ExchangeCodeFunc is called when ExchangeCode() is invoked
	ExchangeCodeFunc func(ctx context.Context, code string) (*idp.TokenSet, error)

	// ExchangeRefreshTokenFunc is called when ExchangeRefreshToken() is invoked
	ExchangeRefreshTokenFunc func(ctx context.Context, refreshToken string) (*idp.TokenSet, error)

	// CallCounts tracks how many times each method was called
	CallCounts map[string]int

	// LastCode and LastRefreshToken record the most recent arguments
	LastCode         string
	LastRefreshToken string

	// mu protects CallCounts and the Last* fields
	mu sync.Mutex
}

// NewMockGateway creates a mock gateway with default success responses.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		CallCounts: make(map[string]int),
		ExchangeCodeFunc: func(_ context.Context, _ string) (*idp.TokenSet, error) {
			return &idp.TokenSet{IDToken: "mock.id.token", RefreshToken: "mock-refresh-token"}, nil
		},
		ExchangeRefreshTokenFunc: func(_ context.Context, _ string) (*idp.TokenSet, error) {
			return &idp.TokenSet{IDToken: "mock.id.token"}, nil
		},
	}
}

// ExchangeCode implements idp.Gateway.
func (m *MockGateway) ExchangeCode(ctx context.Context, code string) (*idp.TokenSet, error) {
	m.mu.Lock()
	m.CallCounts["ExchangeCode"]++
	m.LastCode = code
	m.mu.Unlock()
	return m.ExchangeCodeFunc(ctx, code)
}

// ExchangeRefreshToken implements idp.Gateway.
func (m *MockGateway) ExchangeRefreshToken(ctx context.Context, refreshToken string) (*idp.TokenSet, error) {
	m.mu.Lock()
	m.CallCounts["ExchangeRefreshToken"]++
	m.LastRefreshToken = refreshToken
	m.mu.Unlock()
	return m.ExchangeRefreshTokenFunc(ctx, refreshToken)
}

// Calls returns how many times the named method was invoked.
func (m *MockGateway) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCounts[method]
}

// MockVerifier is a mock implementation of idp.ClaimsVerifier.
type MockVerifier struct {
	// VerifyFunc is called when VerifyAndExtractClaims() is invoked
	VerifyFunc func(ctx context.Context, rawToken string) (*idp.Claims, error)

	// CallCount tracks invocations
	CallCount int

	mu sync.Mutex
}

// NewMockVerifier creates a verifier returning the given claims for every
// token.
func NewMockVerifier(claims *idp.Claims) *MockVerifier {
	return &MockVerifier{
		VerifyFunc: func(_ context.Context, _ string) (*idp.Claims, error) {
			return claims, nil
		},
	}
}

// VerifyAndExtractClaims implements idp.ClaimsVerifier.
func (m *MockVerifier) VerifyAndExtractClaims(ctx context.Context, rawToken string) (*idp.Claims, error) {
	m.mu.Lock()
	m.CallCount++
	m.mu.Unlock()
	return m.VerifyFunc(ctx, rawToken)
}
