package driven

import (
	"context"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
)

// KnowledgeStore persists sources, chunks and embeddings against the
// backing store, and exposes the store-side ranking procedures.
type KnowledgeStore interface {
	// AddSource inserts a source and returns it with the store-assigned
	// ID. A duplicate URL yields domain.ErrAlreadyExists.
	AddSource(ctx context.Context, source *domain.Source) (*domain.Source, error)

	// GetSource retrieves a source by URL. Returns domain.ErrNotFound
	// when no source has that URL.
	GetSource(ctx context.Context, url string) (*domain.Source, error)

	// ListSources lists up to limit sources.
	ListSources(ctx context.Context, limit int) ([]*domain.Source, error)

	// AddChunk inserts a single chunk and returns it with its assigned ID.
	AddChunk(ctx context.Context, chunk *domain.Chunk) (*domain.Chunk, error)

	// AddChunksBatch inserts chunks in a single request and returns the
	// count actually accepted. The insert is all-or-nothing: on failure
	// the count is zero, never partial.
	AddChunksBatch(ctx context.Context, chunks []*domain.Chunk) (int, error)

	// ChunksWithoutEmbeddings returns up to limit chunks whose embedding
	// is unset, in a stable order. Idempotent read; drives backfill sweeps.
	ChunksWithoutEmbeddings(ctx context.Context, limit int) ([]*domain.Chunk, error)

	// UpdateChunkEmbedding sets the embedding for exactly one chunk.
	// Re-setting the same embedding is safe.
	UpdateChunkEmbedding(ctx context.Context, id int64, vec []float32) error

	// CountChunks returns an exact chunk count for the filter.
	CountChunks(ctx context.Context, filter domain.ChunkFilter) (int, error)

	// SearchSemantic invokes the store-side vector ranking procedure.
	// Results are ordered by descending similarity; only content, url,
	// title and similarity are populated on the returned chunks.
	SearchSemantic(ctx context.Context, vec []float32, limit int, threshold float64) ([]*domain.Chunk, error)

	// SearchHybrid invokes the store-side fused vector+keyword ranking
	// procedure, weighted by semanticWeight in [0,1].
	SearchHybrid(ctx context.Context, vec []float32, query string, limit int, semanticWeight float64) ([]*domain.Chunk, error)

	// Stats returns aggregate knowledgebase counters.
	Stats(ctx context.Context) (*domain.Stats, error)

	// Ping checks if the store is reachable.
	Ping(ctx context.Context) error
}
