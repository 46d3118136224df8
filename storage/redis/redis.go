package redis

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tippexs/nginx-openid-connect/storage"
)

const (
	// DefaultKeyPrefix is the default prefix for all session keys.
	DefaultKeyPrefix = "oidc:session:"

	// connectionVerifyTimeout is the timeout for initial connection verification.
	connectionVerifyTimeout = 5 * time.Second

	// maxSessionDataSize caps serialized session data (64KB) to keep a
	// misbehaving IdP from storing unbounded token material.
	maxSessionDataSize = 64 * 1024
)

// Config holds configuration for the Redis session store.
type Config struct {
	// Address is the Redis server address (required), e.g. "localhost:6379".
	Address string

	// Password is the optional password for Redis authentication.
	Password string

	// DB is the optional database number (default 0).
	DB int

	// KeyPrefix is the prefix for all keys (default "oidc:session:").
	KeyPrefix string

	// SessionTTL is the expiry applied to session keys. Zero means keys
	// never expire. Sessions are never deleted by the gateway, so a TTL is
	// the only way stale sessions leave the store.
	SessionTTL time.Duration

	// TLS is the optional TLS configuration for encrypted connections.
	TLS *tls.Config
}

// Store is a Redis-backed implementation of storage.SessionStore.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// New creates a Redis session store and verifies the connection.
func New(cfg *Config, logger *slog.Logger) (*Store, error) {
	if cfg == nil || cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:      cfg.Address,
		Password:  cfg.Password,
		DB:        cfg.DB,
		TLSConfig: cfg.TLS,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionVerifyTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}

	logger.Info("Connected to Redis session store", "address", cfg.Address, "ttl", cfg.SessionTTL)

	return &Store{
		client: client,
		prefix: prefix,
		ttl:    cfg.SessionTTL,
		logger: logger,
	}, nil
}

// NewWithClient wraps an existing Redis client. Used by tests and by
// callers that manage their own client lifecycle.
func NewWithClient(client *redis.Client, keyPrefix string, ttl time.Duration, logger *slog.Logger) *Store {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, prefix: keyPrefix, ttl: ttl, logger: logger}
}

// Close releases the underlying Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) sessionKey(key string) string {
	return s.prefix + key
}

// GetSession retrieves the session for a key.
func (s *Store) GetSession(ctx context.Context, key string) (*storage.Session, error) {
	if key == "" {
		return nil, fmt.Errorf("session key is required")
	}

	data, err := s.client.Get(ctx, s.sessionKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session storage.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// SetSession writes the session for a key, overwriting any previous value.
func (s *Store) SetSession(ctx context.Context, key string, session *storage.Session) error {
	if key == "" {
		return fmt.Errorf("session key is required")
	}
	if session == nil {
		return fmt.Errorf("session is required")
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if len(data) > maxSessionDataSize {
		return fmt.Errorf("session data exceeds maximum size of %d bytes", maxSessionDataSize)
	}

	if err := s.client.Set(ctx, s.sessionKey(key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.Debug("Saved session",
		"refresh_token_state", session.RefreshTokenState().String())
	return nil
}
