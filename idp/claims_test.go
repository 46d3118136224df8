package idp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tippexs/nginx-openid-connect/internal/testutil"
)

func TestExtractClaims(t *testing.T) {
	raw := testutil.MintIDToken(t, map[string]any{
		"aud":   "client-1",
		"iat":   1719264000,
		"iss":   "https://idp.example.com",
		"sub":   "user-1",
		"nonce": "hashed-nonce",
	})

	claims, err := ExtractClaims(raw)
	if err != nil {
		t.Fatalf("ExtractClaims() error = %v", err)
	}

	if claims.Audience != "client-1" {
		t.Errorf("Audience = %q, want client-1", claims.Audience)
	}
	if claims.IssuedAt != "1719264000" {
		t.Errorf("IssuedAt = %q, want exact textual form 1719264000", claims.IssuedAt)
	}
	if claims.Issuer != "https://idp.example.com" {
		t.Errorf("Issuer = %q", claims.Issuer)
	}
	if claims.Subject != "user-1" {
		t.Errorf("Subject = %q", claims.Subject)
	}
	if claims.Nonce != "hashed-nonce" {
		t.Errorf("Nonce = %q", claims.Nonce)
	}
}

func TestExtractClaims_FractionalIat(t *testing.T) {
	raw := testutil.MintIDToken(t, map[string]any{
		"aud": "client-1",
		"iat": 1719264000.25,
		"iss": "https://idp.example.com",
		"sub": "user-1",
	})

	claims, err := ExtractClaims(raw)
	if err != nil {
		t.Fatalf("ExtractClaims() error = %v", err)
	}

	// The fractional textual form must be preserved so the validator's
	// integer round-trip check can reject it.
	if claims.IssuedAt != "1719264000.25" {
		t.Errorf("IssuedAt = %q, want 1719264000.25", claims.IssuedAt)
	}
}

func TestExtractClaims_AudienceArray(t *testing.T) {
	t.Run("single element", func(t *testing.T) {
		raw := testutil.MintIDToken(t, map[string]any{"aud": []string{"client-1"}})
		claims, err := ExtractClaims(raw)
		if err != nil {
			t.Fatalf("ExtractClaims() error = %v", err)
		}
		if claims.Audience != "client-1" {
			t.Errorf("Audience = %q, want client-1", claims.Audience)
		}
	})

	t.Run("multi valued", func(t *testing.T) {
		raw := testutil.MintIDToken(t, map[string]any{"aud": []string{"client-1", "client-2"}})
		claims, err := ExtractClaims(raw)
		if err != nil {
			t.Fatalf("ExtractClaims() error = %v", err)
		}
		if claims.Audience != "client-1,client-2" {
			t.Errorf("Audience = %q, want flattened form", claims.Audience)
		}
	})
}

func TestExtractClaims_MissingClaims(t *testing.T) {
	raw := testutil.MintIDToken(t, map[string]any{"sub": "user-1"})

	claims, err := ExtractClaims(raw)
	if err != nil {
		t.Fatalf("ExtractClaims() error = %v", err)
	}
	if claims.Audience != "" || claims.IssuedAt != "" || claims.Issuer != "" || claims.Nonce != "" {
		t.Errorf("missing claims should be empty strings: %+v", claims)
	}
}

func TestExtractClaims_Garbage(t *testing.T) {
	if _, err := ExtractClaims("not-a-jwt"); err == nil {
		t.Error("ExtractClaims() should fail on a non-JWT string")
	}
}

func TestRemoteVerifier(t *testing.T) {
	raw := testutil.MintIDToken(t, map[string]any{
		"aud": "client-1",
		"iat": 1719264000,
		"iss": "https://idp.example.com",
		"sub": "user-1",
	})

	t.Run("valid token", func(t *testing.T) {
		var gotAuth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		v := &RemoteVerifier{ValidateURL: server.URL}
		claims, err := v.VerifyAndExtractClaims(context.Background(), raw)
		if err != nil {
			t.Fatalf("VerifyAndExtractClaims() error = %v", err)
		}
		if claims.Subject != "user-1" {
			t.Errorf("Subject = %q, want user-1", claims.Subject)
		}
		if gotAuth != "Bearer "+raw {
			t.Errorf("Authorization = %q, want bearer token", gotAuth)
		}
	})

	t.Run("rejected token", func(t *testing.T) {
		server := testutil.NewFakeValidator(t, false)

		v := &RemoteVerifier{ValidateURL: server.URL}
		if _, err := v.VerifyAndExtractClaims(context.Background(), raw); err == nil {
			t.Error("VerifyAndExtractClaims() should fail when validation endpoint rejects")
		}
	})

	t.Run("empty token", func(t *testing.T) {
		v := &RemoteVerifier{ValidateURL: "http://unused.example.com"}
		if _, err := v.VerifyAndExtractClaims(context.Background(), ""); err == nil {
			t.Error("VerifyAndExtractClaims() should fail on empty token")
		}
	})
}
