package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// NonceHasher computes the keyed hash that binds a login nonce into an ID
// Token. The same derivation is used for request-correlation identifiers,
// so the output must be byte-for-byte reproducible for a given input and
// key across processes.
//
// The hash is HMAC-SHA256 keyed by a shared secret, encoded as unpadded
// base64url.
type NonceHasher struct {
	key []byte
}

// NewNonceHasher creates a hasher keyed by the shared secret.
func NewNonceHasher(secret string) *NonceHasher {
	return &NonceHasher{key: []byte(secret)}
}

// Hash returns the keyed hash of input. An empty input is hashed like any
// other value; the caller decides whether empty is meaningful.
func (h *NonceHasher) Hash(input string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(input))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
