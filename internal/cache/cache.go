package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for the process-scoped cache. It is keyed by
// content hash, never by sample ID, so re-ingested text hits.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key generates a cache key from text content under a namespace. The
// namespace carries the embedding model version: changing the model changes
// every key, so stale vectors die by TTL instead of needing an explicit
// flush.
func Key(namespace, content string) string {
	hash := sha256.Sum256([]byte(content))
	return "triggerforge:" + namespace + ":" + hex.EncodeToString(hash[:])
}
