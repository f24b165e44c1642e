package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driving"
)

// Ensure ingestService implements Ingestor
var _ driving.Ingestor = (*ingestService)(nil)

const (
	defaultBackfillBatchSize = 50
	defaultBackfillMaxSweeps = 100
	defaultBackfillWorkers   = 4
)

// ingestService drives parsed documents into the knowledge store and
// backfills embeddings for chunks persisted without one.
type ingestService struct {
	store    driven.KnowledgeStore
	embedder driven.Embedder
	logger   *slog.Logger

	// embedOnIngest runs a backfill pass right after ingesting, so a
	// healthy service leaves no unembedded chunks behind.
	embedOnIngest bool

	defaults domain.BackfillOptions
}

// IngestorConfig holds configuration for the ingestion pipeline.
type IngestorConfig struct {
	Store    driven.KnowledgeStore
	Embedder driven.Embedder
	Logger   *slog.Logger

	// EmbedOnIngest triggers an embedding backfill after each Ingest call.
	EmbedOnIngest bool

	// BackfillDefaults apply when BackfillOptions fields are zero.
	BackfillDefaults domain.BackfillOptions
}

// NewIngestor creates the ingestion pipeline.
func NewIngestor(cfg IngestorConfig) driving.Ingestor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	defaults := cfg.BackfillDefaults
	if defaults.BatchSize <= 0 {
		defaults.BatchSize = defaultBackfillBatchSize
	}
	if defaults.MaxSweeps <= 0 {
		defaults.MaxSweeps = defaultBackfillMaxSweeps
	}
	if defaults.Workers <= 0 {
		defaults.Workers = defaultBackfillWorkers
	}

	return &ingestService{
		store:         cfg.Store,
		embedder:      cfg.Embedder,
		logger:        logger,
		embedOnIngest: cfg.EmbedOnIngest,
		defaults:      defaults,
	}
}

// Ingest persists a parsed document's chunks under a single source.
// Re-ingesting a URL that already has a source returns ErrAlreadyExists;
// callers treat that as a recoverable skip, not a failure.
func (s *ingestService) Ingest(ctx context.Context, doc *domain.ParsedDocument, chunks []domain.ChunkText) (*domain.IngestResult, error) {
	if doc == nil || doc.Path == "" {
		return nil, fmt.Errorf("document path required: %w", domain.ErrInvalidInput)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks to ingest: %w", domain.ErrInvalidInput)
	}

	runID := uuid.NewString()
	logger := s.logger.With("run_id", runID, "url", doc.Path)

	source, err := s.resolveSource(ctx, doc)
	if err != nil {
		return nil, err
	}

	rows := make([]*domain.Chunk, len(chunks))
	for i, ct := range chunks {
		rows[i] = &domain.Chunk{
			SourceID:    source.ID,
			URL:         doc.Path,
			ChunkNumber: ct.Number,
			Title:       ct.Title,
			Content:     ct.Content,
		}
	}

	accepted, err := s.store.AddChunksBatch(ctx, rows)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			logger.Info("chunks already ingested", "chunks", len(rows))
			return nil, err
		}
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}

	logger.Info("chunks ingested", "chunks", accepted)

	result := &domain.IngestResult{
		RunID:          runID,
		Source:         source,
		ChunksAccepted: accepted,
	}

	if s.embedOnIngest {
		backfill, err := s.Backfill(ctx, domain.BackfillOptions{})
		if err != nil {
			return nil, fmt.Errorf("embedding backfill after ingest: %w", err)
		}
		result.ChunksEmbedded = backfill.Updated
	}

	return result, nil
}

// resolveSource finds the source for the document's URL or registers a
// new one. A source that already exists means the document was ingested
// before; that surfaces as ErrAlreadyExists.
func (s *ingestService) resolveSource(ctx context.Context, doc *domain.ParsedDocument) (*domain.Source, error) {
	existing, err := s.store.GetSource(ctx, doc.Path)
	if err == nil {
		return nil, fmt.Errorf("source %s: %w", existing.URL, domain.ErrAlreadyExists)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up source: %w", err)
	}

	source := &domain.Source{
		URL:        doc.Path,
		Title:      doc.Title,
		SourceType: doc.Format,
		Metadata:   doc.Metadata,
	}

	created, err := s.store.AddSource(ctx, source)
	if err != nil {
		// Unique constraint backstop for concurrent ingests of the
		// same URL.
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to register source: %w", err)
	}

	return created, nil
}

// Backfill embeds chunks that lack embeddings, in sweeps of BatchSize.
// It terminates when a sweep fetches fewer chunks than requested, when a
// full sweep makes no progress, or after MaxSweeps.
func (s *ingestService) Backfill(ctx context.Context, opts domain.BackfillOptions) (*domain.BackfillResult, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = s.defaults.BatchSize
	}
	if opts.MaxSweeps <= 0 {
		opts.MaxSweeps = s.defaults.MaxSweeps
	}
	if opts.Workers <= 0 {
		opts.Workers = s.defaults.Workers
	}

	result := &domain.BackfillResult{}

	for result.Sweeps < opts.MaxSweeps {
		chunks, err := s.store.ChunksWithoutEmbeddings(ctx, opts.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch pending chunks: %w", err)
		}
		if len(chunks) == 0 {
			break
		}

		result.Sweeps++
		updated, failed, skipped := s.embedSweep(ctx, chunks, opts.Workers)
		result.Updated += updated
		result.Failed += failed
		result.Skipped += skipped

		s.logger.Info("backfill sweep complete",
			"sweep", result.Sweeps,
			"updated", updated,
			"failed", failed,
			"skipped", skipped,
		)

		// A short fetch means the store has no more pending chunks
		// beyond this sweep.
		if len(chunks) < opts.BatchSize {
			break
		}
		// No progress means every remaining chunk is unembeddable;
		// looping again would refetch the same batch forever.
		if updated == 0 {
			break
		}
	}

	remained, err := s.store.CountChunks(ctx, domain.ChunkFilterWithoutEmbedding)
	if err != nil {
		return nil, fmt.Errorf("failed to count remaining chunks: %w", err)
	}
	result.Remained = remained

	return result, nil
}

// embedSweep embeds one batch with a bounded worker pool. Results are
// slotted by index so chunk-to-vector pairing never depends on
// completion order.
func (s *ingestService) embedSweep(ctx context.Context, chunks []*domain.Chunk, workers int) (updated, failed, skipped int) {
	results := make([]domain.EmbedResult, len(chunks))

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for i, chunk := range chunks {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, text string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = s.embedder.Embed(ctx, text)
		}(i, chunk.Content)
	}
	wg.Wait()

	for i, res := range results {
		switch {
		case res.OK():
			if err := s.store.UpdateChunkEmbedding(ctx, chunks[i].ID, res.Vector); err != nil {
				s.logger.Warn("failed to store embedding", "chunk_id", chunks[i].ID, "error", err)
				failed++
				continue
			}
			updated++
		case res.Status == domain.EmbedEmpty:
			skipped++
		default:
			s.logger.Warn("embedding failed", "chunk_id", chunks[i].ID, "detail", res.Detail)
			failed++
		}
	}

	return updated, failed, skipped
}

// Stats reports knowledgebase counters.
func (s *ingestService) Stats(ctx context.Context) (*domain.Stats, error) {
	return s.store.Stats(ctx)
}
