package driven

import (
	"context"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
)

// Embedder generates text embeddings via an external inference service.
//
// The contract is fail-soft: embedding calls never return an error. A
// transport failure, a non-2xx response, or a malformed body all yield an
// EmbedResult with status EmbedFailed, and empty input yields EmbedEmpty.
// Callers that need the reason inspect the result, not an error value.
type Embedder interface {
	// Embed generates an embedding for a single text. Input longer than
	// the model's context budget is truncated silently before sending.
	Embed(ctx context.Context, text string) domain.EmbedResult

	// EmbedBatch generates embeddings for multiple texts, one result per
	// input, preserving order and length. Each element is computed
	// independently; failure of one text does not affect the others.
	EmbedBatch(ctx context.Context, texts []string) []domain.EmbedResult

	// Probe reports whether the service is reachable and the configured
	// model is present, with a human-readable diagnostic. Intended for
	// startup health checks, not request-path logic.
	Probe(ctx context.Context) (bool, string)

	// Model returns the model name being used
	Model() string

	// Dimensions returns the embedding dimension size
	Dimensions() int
}

// EmbeddingCache caches query embeddings keyed by model and text.
// Lookups and writes are best-effort; an unreachable cache must degrade
// to pass-through, never to a failure.
type EmbeddingCache interface {
	Get(ctx context.Context, model, text string) ([]float32, bool)
	Put(ctx context.Context, model, text string, vec []float32)
}
