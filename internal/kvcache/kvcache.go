// Package kvcache provides the key-value store used to memoize external
// lookup responses. Entries are raw JSON payloads and are never invalidated;
// callers prefer a stale hit over a repeat query.
package kvcache

import "encoding/json"

// Store is a persisted key to raw-response mapping.
type Store interface {
	// Get returns the cached value for key, if present.
	Get(key string) (json.RawMessage, bool)
	// Put stores a value under key and persists it.
	Put(key string, value json.RawMessage) error
}

// EmailKey builds the cache key for an email verification lookup.
func EmailKey(email string) string {
	return "email:" + email
}
