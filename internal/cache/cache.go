package cache

import (
	"errors"
	"fmt"
	"time"
)

// ErrCacheMiss is returned when a key is absent or its entry has expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache defines the interface for all cache implementations
type Cache interface {
	// Get retrieves a value from the cache
	Get(key string, value interface{}) error

	// Set stores a value in the cache with an optional TTL
	Set(key string, value interface{}, ttl time.Duration) error

	// Delete removes a value from the cache
	Delete(key string) error

	// Close cleans up the cache resources
	Close() error
}

// KeyBuilder helps build consistent cache keys
type KeyBuilder struct {
	prefix string
}

func NewKeyBuilder(prefix string) *KeyBuilder {
	return &KeyBuilder{prefix: prefix}
}

// SessionKey identifies the cached API session for a machine token on a host.
// The raw token is part of the key; FileCache hashes keys before they touch
// the filesystem, so the token is never written out.
func (b *KeyBuilder) SessionKey(host, machineToken string) string {
	return b.buildKey("session", host, machineToken)
}

func (b *KeyBuilder) buildKey(parts ...string) string {
	key := b.prefix
	for _, part := range parts {
		key += ":" + part
	}
	return key
}

// NewDefaultCache returns the cache used when callers have no special needs:
// a file cache under the user cache directory.
func NewDefaultCache() (Cache, error) {
	c, err := NewFileCache("buildflow")
	if err != nil {
		return nil, fmt.Errorf("creating default cache: %w", err)
	}
	return c, nil
}
