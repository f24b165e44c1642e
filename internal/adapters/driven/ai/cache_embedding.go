package ai

import (
	"context"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
)

// Ensure CachingEmbedder implements Embedder
var _ driven.Embedder = (*CachingEmbedder)(nil)

// CachingEmbedder wraps an Embedder with an EmbeddingCache. Only
// successful results are cached; Empty and Failed outcomes are
// recomputed on the next call. Used on the query path, where the same
// search text recurs.
type CachingEmbedder struct {
	inner driven.Embedder
	cache driven.EmbeddingCache
}

// NewCachingEmbedder wraps inner with cache.
func NewCachingEmbedder(inner driven.Embedder, cache driven.EmbeddingCache) *CachingEmbedder {
	return &CachingEmbedder{inner: inner, cache: cache}
}

func (e *CachingEmbedder) Embed(ctx context.Context, text string) domain.EmbedResult {
	if vec, ok := e.cache.Get(ctx, e.inner.Model(), text); ok {
		return domain.EmbedVector(vec)
	}

	result := e.inner.Embed(ctx, text)
	if result.OK() {
		e.cache.Put(ctx, e.inner.Model(), text, result.Vector)
	}
	return result
}

func (e *CachingEmbedder) EmbedBatch(ctx context.Context, texts []string) []domain.EmbedResult {
	results := make([]domain.EmbedResult, len(texts))
	for i, text := range texts {
		results[i] = e.Embed(ctx, text)
	}
	return results
}

func (e *CachingEmbedder) Probe(ctx context.Context) (bool, string) {
	return e.inner.Probe(ctx)
}

func (e *CachingEmbedder) Model() string { return e.inner.Model() }

func (e *CachingEmbedder) Dimensions() int { return e.inner.Dimensions() }
