package services

import (
	"context"
	"log/slog"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driving"
)

// Ensure retrievalService implements Retriever
var _ driving.Retriever = (*retrievalService)(nil)

// retrievalService answers queries against the knowledge store. It fails
// closed: an unembeddable query or an unreachable store produces an empty
// result set, never an error. Callers always get something they can
// render; the logs carry the reason.
type retrievalService struct {
	store    driven.KnowledgeStore
	embedder driven.Embedder
	logger   *slog.Logger
	defaults domain.SearchDefaults
}

// RetrieverConfig holds configuration for the retrieval engine.
type RetrieverConfig struct {
	Store    driven.KnowledgeStore
	Embedder driven.Embedder
	Logger   *slog.Logger

	// Defaults apply when SearchOptions fields are zero.
	Defaults domain.SearchDefaults
}

// NewRetriever creates the retrieval engine.
func NewRetriever(cfg RetrieverConfig) driving.Retriever {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	defaults := cfg.Defaults
	if defaults == (domain.SearchDefaults{}) {
		defaults = domain.DefaultSearchDefaults()
	}

	return &retrievalService{
		store:    cfg.Store,
		embedder: cfg.Embedder,
		logger:   logger,
		defaults: defaults,
	}
}

// SearchSemantic ranks chunks by vector similarity to the query.
func (s *retrievalService) SearchSemantic(ctx context.Context, query string, opts domain.SearchOptions) ([]*domain.Chunk, error) {
	opts = opts.Resolve(s.defaults)

	vec, ok := s.embedQuery(ctx, query)
	if !ok {
		return []*domain.Chunk{}, nil
	}

	chunks, err := s.store.SearchSemantic(ctx, vec, opts.Limit, opts.Threshold)
	if err != nil {
		s.logger.Warn("semantic search failed", "error", err)
		return []*domain.Chunk{}, nil
	}

	return chunks, nil
}

// SearchHybrid ranks chunks by a weighted fusion of vector similarity
// and keyword relevance.
func (s *retrievalService) SearchHybrid(ctx context.Context, query string, opts domain.SearchOptions) ([]*domain.Chunk, error) {
	opts = opts.Resolve(s.defaults)

	vec, ok := s.embedQuery(ctx, query)
	if !ok {
		return []*domain.Chunk{}, nil
	}

	chunks, err := s.store.SearchHybrid(ctx, vec, query, opts.Limit, opts.SemanticWeight)
	if err != nil {
		s.logger.Warn("hybrid search failed", "error", err)
		return []*domain.Chunk{}, nil
	}

	return chunks, nil
}

// embedQuery embeds the query text. A blank query or a failed embedding
// call reports false; search then degrades to empty results.
func (s *retrievalService) embedQuery(ctx context.Context, query string) ([]float32, bool) {
	res := s.embedder.Embed(ctx, query)
	if !res.OK() {
		s.logger.Warn("query embedding unavailable", "status", res.Status.String(), "detail", res.Detail)
		return nil, false
	}
	return res.Vector, true
}
