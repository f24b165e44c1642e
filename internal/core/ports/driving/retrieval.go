package driving

import (
	"context"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
)

// Retriever answers queries through semantic and hybrid search.
//
// Both calls fail closed: if the query cannot be embedded or the store
// is unreachable, they return an empty result set, not an error.
type Retriever interface {
	// SearchSemantic ranks chunks by vector similarity to the query.
	SearchSemantic(ctx context.Context, query string, opts domain.SearchOptions) ([]*domain.Chunk, error)

	// SearchHybrid ranks chunks by a weighted fusion of vector
	// similarity and keyword relevance.
	SearchHybrid(ctx context.Context, query string, opts domain.SearchOptions) ([]*domain.Chunk, error)
}
