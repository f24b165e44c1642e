package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// setupTestCache creates a test Redis client and EmbeddingCache
func setupTestCache(t *testing.T) (*EmbeddingCache, *miniredis.Miniredis, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := NewEmbeddingCache(client, time.Hour)

	return cache, mr, func() {
		client.Close()
		mr.Close()
	}
}

func TestEmbeddingCache_PutGet(t *testing.T) {
	cache, _, cleanup := setupTestCache(t)
	defer cleanup()

	ctx := context.Background()
	vec := []float32{0.1, 0.2, 0.3}

	cache.Put(ctx, "nomic-embed-text", "what is a channel", vec)

	got, ok := cache.Get(ctx, "nomic-embed-text", "what is a channel")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got) != len(vec) {
		t.Fatalf("expected %d dimensions, got %d", len(vec), len(got))
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("dimension %d: expected %f, got %f", i, vec[i], got[i])
		}
	}
}

func TestEmbeddingCache_Miss(t *testing.T) {
	cache, _, cleanup := setupTestCache(t)
	defer cleanup()

	_, ok := cache.Get(context.Background(), "nomic-embed-text", "never seen")
	if ok {
		t.Error("expected cache miss")
	}
}

func TestEmbeddingCache_KeyedByModel(t *testing.T) {
	cache, _, cleanup := setupTestCache(t)
	defer cleanup()

	ctx := context.Background()
	cache.Put(ctx, "nomic-embed-text", "query", []float32{0.1})

	if _, ok := cache.Get(ctx, "text-embedding-3-small", "query"); ok {
		t.Error("expected miss for different model")
	}
	if _, ok := cache.Get(ctx, "nomic-embed-text", "query"); !ok {
		t.Error("expected hit for same model")
	}
}

func TestEmbeddingCache_TTLExpiration(t *testing.T) {
	cache, mr, cleanup := setupTestCache(t)
	defer cleanup()

	ctx := context.Background()
	cache.Put(ctx, "nomic-embed-text", "query", []float32{0.1})

	mr.FastForward(2 * time.Hour)

	if _, ok := cache.Get(ctx, "nomic-embed-text", "query"); ok {
		t.Error("expected miss after TTL expiry")
	}
}

func TestEmbeddingCache_EmptyVectorNotStored(t *testing.T) {
	cache, mr, cleanup := setupTestCache(t)
	defer cleanup()

	cache.Put(context.Background(), "nomic-embed-text", "query", nil)

	if len(mr.Keys()) != 0 {
		t.Error("expected no keys for empty vector")
	}
}

func TestEmbeddingCache_CorruptEntryIsMiss(t *testing.T) {
	cache, mr, cleanup := setupTestCache(t)
	defer cleanup()

	_ = mr.Set(cacheKey("nomic-embed-text", "query"), "not json")

	if _, ok := cache.Get(context.Background(), "nomic-embed-text", "query"); ok {
		t.Error("expected miss for corrupt entry")
	}
}

func TestEmbeddingCache_RedisDownIsMiss(t *testing.T) {
	cache, mr, cleanup := setupTestCache(t)
	defer cleanup()

	mr.Close()

	// Redis being unavailable degrades to a miss, not an error
	if _, ok := cache.Get(context.Background(), "nomic-embed-text", "query"); ok {
		t.Error("expected miss when redis is down")
	}
	cache.Put(context.Background(), "nomic-embed-text", "query", []float32{0.1})
}

func TestEmbeddingCache_LongTextHashedKey(t *testing.T) {
	cache, mr, cleanup := setupTestCache(t)
	defer cleanup()

	ctx := context.Background()
	long := make([]byte, 100000)
	for i := range long {
		long[i] = 'a'
	}

	cache.Put(ctx, "nomic-embed-text", string(long), []float32{0.5})

	keys := mr.Keys()
	if len(keys) != 1 {
		t.Fatalf("expected 1 key, got %d", len(keys))
	}
	// sha256 hex plus prefix and model, never the raw text
	if len(keys[0]) > 120 {
		t.Errorf("expected fixed-size key, got %d bytes", len(keys[0]))
	}

	if _, ok := cache.Get(ctx, "nomic-embed-text", string(long)); !ok {
		t.Error("expected hit for long text")
	}
}
