package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tippexs/nginx-openid-connect/storage"
)

// Store is an in-memory implementation of storage.SessionStore.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*storage.Session
	logger   *slog.Logger
}

// New creates an in-memory session store.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sessions: make(map[string]*storage.Session),
		logger:   logger,
	}
}

// GetSession retrieves the session for a key.
func (s *Store) GetSession(_ context.Context, key string) (*storage.Session, error) {
	if key == "" {
		return nil, fmt.Errorf("session key is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[key]
	if !ok {
		return nil, storage.ErrSessionNotFound
	}
	return session.Clone(), nil
}

// SetSession writes the session for a key, overwriting any previous value.
func (s *Store) SetSession(_ context.Context, key string, session *storage.Session) error {
	if key == "" {
		return fmt.Errorf("session key is required")
	}
	if session == nil {
		return fmt.Errorf("session is required")
	}

	s.mu.Lock()
	s.sessions[key] = session.Clone()
	s.mu.Unlock()

	s.logger.Debug("Saved session",
		"refresh_token_state", session.RefreshTokenState().String())
	return nil
}

// Len returns the number of stored sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
