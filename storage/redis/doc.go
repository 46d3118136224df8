// Package redis provides a Redis-backed implementation of the session store
// for multi-instance deployments. Sessions are stored JSON-encoded under a
// configurable key prefix with an optional TTL, matching the overwrite-only,
// last-write-wins contract of storage.SessionStore.
package redis
