package storage

import (
	"context"
	"errors"
)

// TombstoneRefreshToken is the sentinel stored in place of a refresh token
// that has been invalidated by a failed refresh. It is distinct from an
// empty value: empty means the IdP never issued a refresh token for this
// session, the tombstone means one was issued and later rejected.
//
// The literal "-" is part of the storage format and must not change; other
// consumers of the session cache rely on it.
const TombstoneRefreshToken = "-"

// ErrSessionNotFound is returned by GetSession when no session exists for
// the given key.
var ErrSessionNotFound = errors.New("session not found")

// RefreshTokenState classifies the refresh token held by a session.
type RefreshTokenState int

const (
	// RefreshTokenAbsent means the IdP never issued a refresh token.
	RefreshTokenAbsent RefreshTokenState = iota

	// RefreshTokenTombstone means a previously stored refresh token was
	// invalidated by a failed refresh.
	RefreshTokenTombstone

	// RefreshTokenPresent means a usable refresh token is stored.
	RefreshTokenPresent
)

// String returns a log-friendly name for the state.
func (s RefreshTokenState) String() string {
	switch s {
	case RefreshTokenTombstone:
		return "tombstone"
	case RefreshTokenPresent:
		return "present"
	default:
		return "absent"
	}
}

// Session is the token material stored under one opaque session key.
type Session struct {
	// IDToken is the current ID Token (a signed JWT).
	IDToken string `json:"id_token"`

	// RefreshToken is the current refresh token, empty if none was ever
	// issued, or TombstoneRefreshToken if it was invalidated.
	RefreshToken string `json:"refresh_token,omitempty"`
}

// RefreshTokenState classifies the session's refresh token.
func (s *Session) RefreshTokenState() RefreshTokenState {
	switch s.RefreshToken {
	case "":
		return RefreshTokenAbsent
	case TombstoneRefreshToken:
		return RefreshTokenTombstone
	default:
		return RefreshTokenPresent
	}
}

// Clone returns a copy of the session so callers can mutate it without
// affecting store-internal state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}

// SessionStore persists sessions keyed by opaque session tokens.
//
// The store is shared and externally synchronized: writes are plain key
// overwrites with last-write-wins semantics. Concurrent refresh attempts
// for the same key can race; the gateway accepts this (the losing write is
// superseded, not corrupted) rather than requiring transactional storage.
// Sessions are never deleted, only overwritten or superseded by a new
// login.
type SessionStore interface {
	// GetSession retrieves the session for a key. Returns
	// ErrSessionNotFound if the key was never written.
	GetSession(ctx context.Context, key string) (*Session, error)

	// SetSession writes the session for a key, overwriting any previous
	// value.
	SetSession(ctx context.Context, key string, session *Session) error
}
