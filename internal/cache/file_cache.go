package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileCache implements Cache on the filesystem. Keys are hashed so secrets
// embedded in them never reach a filename.
type FileCache struct {
	baseDir string
}

// entry is the on-disk envelope around a cached value.
type entry struct {
	Data      json.RawMessage `json:"data"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func (e *entry) expired() bool {
	return e.ExpiresAt != nil && time.Now().After(*e.ExpiresAt)
}

// NewFileCache creates a file-based cache under the OS user cache directory.
func NewFileCache(appName string) (*FileCache, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user cache directory: %w", err)
	}
	return NewFileCacheWithDir(filepath.Join(cacheDir, appName))
}

// NewFileCacheWithDir creates a file-based cache in a specific directory.
func NewFileCacheWithDir(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	return &FileCache{baseDir: dir}, nil
}

// Get retrieves a value from the cache
func (c *FileCache) Get(key string, value interface{}) error {
	data, err := os.ReadFile(c.keyToFilename(key))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrCacheMiss
		}
		return fmt.Errorf("failed to read cache file: %w", err)
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}

	if e.expired() {
		_ = c.Delete(key)
		return ErrCacheMiss
	}

	if err := json.Unmarshal(e.Data, value); err != nil {
		return fmt.Errorf("failed to unmarshal cached data: %w", err)
	}
	return nil
}

// Set stores a value in the cache with an optional TTL
func (c *FileCache) Set(key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	e := entry{
		Data:      data,
		CreatedAt: time.Now(),
	}
	if ttl > 0 {
		expiresAt := time.Now().Add(ttl)
		e.ExpiresAt = &expiresAt
	}

	entryData, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	filename := c.keyToFilename(key)
	if err := os.MkdirAll(filepath.Dir(filename), 0700); err != nil {
		return fmt.Errorf("failed to create cache subdirectory: %w", err)
	}
	if err := os.WriteFile(filename, entryData, 0600); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return nil
}

// Delete removes a value from the cache
func (c *FileCache) Delete(key string) error {
	err := os.Remove(c.keyToFilename(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete cache file: %w", err)
	}
	return nil
}

// Close cleans up the cache resources (no-op for file cache)
func (c *FileCache) Close() error {
	return nil
}

// keyToFilename converts a cache key to a safe filename. The first two hash
// characters become a subdirectory to avoid piling files into one dir.
func (c *FileCache) keyToFilename(key string) string {
	hash := sha256.Sum256([]byte(key))
	hashStr := hex.EncodeToString(hash[:])
	return filepath.Join(c.baseDir, hashStr[:2], hashStr[2:]+".json")
}
