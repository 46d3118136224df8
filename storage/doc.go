// Package storage defines the session persistence interface used by the
// relying-party gateway.
//
// A SessionStore maps opaque session keys to the current token material for a
// user (id_token and refresh_token). The contract is deliberately small:
// overwrite-only writes and plain reads. Refresh tokens are never deleted;
// a tombstone value marks them as unusable while keeping the session entry
// in place.
//
// Implementations are provided in subpackages:
//   - storage/memory: In-memory storage for development and testing
//   - storage/redis: Redis-backed distributed storage for production
package storage
