// Package memory provides an in-memory implementation of the session store.
// It is suitable for development, testing, and single-instance deployments.
//
// Sessions are held in a mutex-guarded map and copied on read and write so
// callers never share memory with the store.
package memory
