package driving

import (
	"context"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
)

// Ingestor drives parsed documents through chunk persistence and
// embedding backfill.
type Ingestor interface {
	// Ingest resolves or creates the source for doc and persists its
	// chunk texts. Re-ingesting a document whose chunks already exist
	// surfaces domain.ErrAlreadyExists, a recoverable condition.
	Ingest(ctx context.Context, doc *domain.ParsedDocument, chunks []domain.ChunkText) (*domain.IngestResult, error)

	// Backfill embeds chunks that lack embeddings in bounded sweeps.
	// Safe to re-run until completion; failed chunks stay eligible.
	Backfill(ctx context.Context, opts domain.BackfillOptions) (*domain.BackfillResult, error)

	// Stats reports knowledgebase counters.
	Stats(ctx context.Context) (*domain.Stats, error)
}
