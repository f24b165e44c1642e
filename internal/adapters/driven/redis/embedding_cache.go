package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.EmbeddingCache = (*EmbeddingCache)(nil)

const embeddingPrefix = "embedding:"

// DefaultEmbeddingTTL bounds how long a cached query embedding stays warm.
const DefaultEmbeddingTTL = 24 * time.Hour

// EmbeddingCache implements driven.EmbeddingCache using Redis.
// Entries expire via Redis TTL. The cache is strictly best-effort:
// Redis being down never fails a caller, it only costs a recompute.
type EmbeddingCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewEmbeddingCache creates a Redis-backed EmbeddingCache. A non-positive
// ttl falls back to DefaultEmbeddingTTL.
func NewEmbeddingCache(client *redis.Client, ttl time.Duration) *EmbeddingCache {
	if ttl <= 0 {
		ttl = DefaultEmbeddingTTL
	}
	return &EmbeddingCache{client: client, ttl: ttl}
}

// cacheKey hashes the text so arbitrarily long queries produce fixed-size
// keys. The model name is part of the key: vectors from different models
// are not interchangeable.
func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return embeddingPrefix + model + ":" + hex.EncodeToString(sum[:])
}

// Get returns a cached embedding for the given model and text
func (c *EmbeddingCache) Get(ctx context.Context, model, text string) ([]float32, bool) {
	data, err := c.client.Get(ctx, cacheKey(model, text)).Bytes()
	if err != nil {
		// redis.Nil and transport errors are both cache misses
		return nil, false
	}

	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, false
	}
	if len(vec) == 0 {
		return nil, false
	}

	return vec, true
}

// Put stores an embedding with the configured TTL. Failures are dropped;
// the cache never propagates errors to embedding callers.
func (c *EmbeddingCache) Put(ctx context.Context, model, text string, vec []float32) {
	if len(vec) == 0 {
		return
	}

	data, err := json.Marshal(vec)
	if err != nil {
		return
	}

	c.client.Set(ctx, cacheKey(model, text), data, c.ttl)
}
