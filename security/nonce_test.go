package security

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestNonceHasher_Deterministic(t *testing.T) {
	h := NewNonceHasher("shared-secret")

	first := h.Hash("nonce-value")
	second := h.Hash("nonce-value")
	if first != second {
		t.Errorf("Hash() not deterministic: %q != %q", first, second)
	}

	// A second hasher with the same key must agree.
	if got := NewNonceHasher("shared-secret").Hash("nonce-value"); got != first {
		t.Errorf("Hash() differs across hasher instances: %q != %q", got, first)
	}
}

func TestNonceHasher_KeyAndInputSensitivity(t *testing.T) {
	h := NewNonceHasher("shared-secret")

	if h.Hash("a") == h.Hash("b") {
		t.Error("Hash() identical for different inputs")
	}
	if h.Hash("a") == NewNonceHasher("other-secret").Hash("a") {
		t.Error("Hash() identical for different keys")
	}
}

func TestNonceHasher_NoPadding(t *testing.T) {
	h := NewNonceHasher("shared-secret")

	got := h.Hash("nonce-value")
	if strings.Contains(got, "=") {
		t.Errorf("Hash() contains base64 padding: %q", got)
	}

	// Output must decode as unpadded base64url to a full SHA-256 digest.
	raw, err := base64.RawURLEncoding.DecodeString(got)
	if err != nil {
		t.Fatalf("Hash() output is not valid base64url: %v", err)
	}
	if len(raw) != 32 {
		t.Errorf("decoded digest length = %d, want 32", len(raw))
	}
}

func TestNonceHasher_EmptyInput(t *testing.T) {
	h := NewNonceHasher("shared-secret")

	// An absent nonce cookie is hashed as the empty string; the result is
	// still a well-formed digest.
	got := h.Hash("")
	if got == "" {
		t.Error("Hash(\"\") should not be empty")
	}
	if got == h.Hash("non-empty") {
		t.Error("Hash(\"\") collides with a non-empty input")
	}
}
