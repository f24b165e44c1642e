package services

import (
	"context"
	"errors"
	"testing"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven/mocks"
)

func testDoc(path string) *domain.ParsedDocument {
	return &domain.ParsedDocument{
		Path:   path,
		Title:  "Test Document",
		Format: "markdown",
	}
}

func testChunks(n int) []domain.ChunkText {
	chunks := make([]domain.ChunkText, n)
	for i := range chunks {
		chunks[i] = domain.ChunkText{
			Number:  i,
			Title:   "Test Document",
			Content: "chunk content number " + string(rune('a'+i)),
		}
	}
	return chunks
}

func TestIngest_Success(t *testing.T) {
	store := mocks.NewMockKnowledgeStore()
	ingestor := NewIngestor(IngestorConfig{Store: store, Embedder: mocks.NewMockEmbedder()})

	result, err := ingestor.Ingest(context.Background(), testDoc("docs/guide.md"), testChunks(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.RunID == "" {
		t.Error("expected a run ID")
	}
	if result.ChunksAccepted != 3 {
		t.Errorf("expected 3 chunks accepted, got %d", result.ChunksAccepted)
	}
	if result.Source == nil || result.Source.ID == 0 {
		t.Error("expected source with assigned ID")
	}

	pending, err := store.CountChunks(context.Background(), domain.ChunkFilterWithoutEmbedding)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pending != 3 {
		t.Errorf("expected 3 pending chunks without backfill, got %d", pending)
	}
}

func TestIngest_EmbedOnIngest(t *testing.T) {
	store := mocks.NewMockKnowledgeStore()
	ingestor := NewIngestor(IngestorConfig{
		Store:         store,
		Embedder:      mocks.NewMockEmbedder(),
		EmbedOnIngest: true,
	})

	result, err := ingestor.Ingest(context.Background(), testDoc("docs/guide.md"), testChunks(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.ChunksEmbedded != 3 {
		t.Errorf("expected 3 chunks embedded, got %d", result.ChunksEmbedded)
	}

	pending, _ := store.CountChunks(context.Background(), domain.ChunkFilterWithoutEmbedding)
	if pending != 0 {
		t.Errorf("expected no pending chunks after ingest, got %d", pending)
	}
}

func TestIngest_DuplicateSource(t *testing.T) {
	store := mocks.NewMockKnowledgeStore()
	ingestor := NewIngestor(IngestorConfig{Store: store, Embedder: mocks.NewMockEmbedder()})

	ctx := context.Background()
	if _, err := ingestor.Ingest(ctx, testDoc("docs/guide.md"), testChunks(2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := ingestor.Ingest(ctx, testDoc("docs/guide.md"), testChunks(2))
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists for re-ingest, got %v", err)
	}

	// The first ingest's chunks are untouched
	total, _ := store.CountChunks(ctx, domain.ChunkFilterAll)
	if total != 2 {
		t.Errorf("expected 2 chunks after duplicate ingest, got %d", total)
	}
}

func TestIngest_InvalidInput(t *testing.T) {
	ingestor := NewIngestor(IngestorConfig{
		Store:    mocks.NewMockKnowledgeStore(),
		Embedder: mocks.NewMockEmbedder(),
	})
	ctx := context.Background()

	if _, err := ingestor.Ingest(ctx, nil, testChunks(1)); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for nil doc, got %v", err)
	}
	if _, err := ingestor.Ingest(ctx, testDoc("docs/guide.md"), nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty chunks, got %v", err)
	}
}

func TestIngest_StoreUnavailable(t *testing.T) {
	store := mocks.NewMockKnowledgeStore()
	store.FailAll = true
	ingestor := NewIngestor(IngestorConfig{Store: store, Embedder: mocks.NewMockEmbedder()})

	_, err := ingestor.Ingest(context.Background(), testDoc("docs/guide.md"), testChunks(1))
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestIngest_PreservesChunkOrder(t *testing.T) {
	store := mocks.NewMockKnowledgeStore()
	ingestor := NewIngestor(IngestorConfig{Store: store, Embedder: mocks.NewMockEmbedder()})

	chunks := testChunks(4)
	if _, err := ingestor.Ingest(context.Background(), testDoc("docs/guide.md"), chunks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, err := store.ChunksWithoutEmbeddings(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stored) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(stored))
	}
	for i, c := range stored {
		if c.ChunkNumber != i {
			t.Errorf("position %d: expected chunk number %d, got %d", i, i, c.ChunkNumber)
		}
	}
}

func seedPendingChunks(t *testing.T, store *mocks.MockKnowledgeStore, contents []string) {
	t.Helper()
	ctx := context.Background()

	source, err := store.AddSource(ctx, &domain.Source{URL: "docs/seed.md", SourceType: "markdown"})
	if err != nil {
		t.Fatalf("failed to seed source: %v", err)
	}

	rows := make([]*domain.Chunk, len(contents))
	for i, content := range contents {
		rows[i] = &domain.Chunk{
			SourceID:    source.ID,
			URL:         source.URL,
			ChunkNumber: i,
			Content:     content,
		}
	}
	if _, err := store.AddChunksBatch(ctx, rows); err != nil {
		t.Fatalf("failed to seed chunks: %v", err)
	}
}

func TestBackfill_EmbedsAllPending(t *testing.T) {
	store := mocks.NewMockKnowledgeStore()
	seedPendingChunks(t, store, []string{"alpha", "beta", "gamma", "delta", "epsilon"})

	ingestor := NewIngestor(IngestorConfig{Store: store, Embedder: mocks.NewMockEmbedder()})

	result, err := ingestor.Backfill(context.Background(), domain.BackfillOptions{BatchSize: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Updated != 5 {
		t.Errorf("expected 5 updated, got %d", result.Updated)
	}
	if result.Remained != 0 {
		t.Errorf("expected 0 remained, got %d", result.Remained)
	}
	if result.Sweeps != 3 {
		t.Errorf("expected 3 sweeps with batch size 2, got %d", result.Sweeps)
	}
}

func TestBackfill_MixedResults(t *testing.T) {
	store := mocks.NewMockKnowledgeStore()
	seedPendingChunks(t, store, []string{"good one", "   ", "bad one", "good two"})

	embedder := mocks.NewMockEmbedder()
	embedder.FailTexts["bad one"] = true

	ingestor := NewIngestor(IngestorConfig{Store: store, Embedder: embedder})

	result, err := ingestor.Backfill(context.Background(), domain.BackfillOptions{BatchSize: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Updated != 2 {
		t.Errorf("expected 2 updated, got %d", result.Updated)
	}
	if result.Skipped != 1 {
		t.Errorf("expected 1 skipped for blank content, got %d", result.Skipped)
	}
	if result.Failed != 1 {
		t.Errorf("expected 1 failed, got %d", result.Failed)
	}
	if result.Remained != 2 {
		t.Errorf("expected 2 remained (blank and failed), got %d", result.Remained)
	}
}

func TestBackfill_FailedChunksRetryable(t *testing.T) {
	store := mocks.NewMockKnowledgeStore()
	seedPendingChunks(t, store, []string{"flaky chunk"})

	embedder := mocks.NewMockEmbedder()
	embedder.FailTexts["flaky chunk"] = true

	ingestor := NewIngestor(IngestorConfig{Store: store, Embedder: embedder})
	ctx := context.Background()

	first, err := ingestor.Backfill(ctx, domain.BackfillOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Failed != 1 || first.Remained != 1 {
		t.Fatalf("expected 1 failed and remaining, got %+v", first)
	}

	// Service recovers; the next run picks the chunk up again
	delete(embedder.FailTexts, "flaky chunk")

	second, err := ingestor.Backfill(ctx, domain.BackfillOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Updated != 1 || second.Remained != 0 {
		t.Errorf("expected retry to embed the chunk, got %+v", second)
	}
}

func TestBackfill_TerminatesOnUnembeddableRemainder(t *testing.T) {
	store := mocks.NewMockKnowledgeStore()
	// A full batch of permanently failing chunks must not loop forever
	seedPendingChunks(t, store, []string{"w", "x", "y", "z"})

	embedder := mocks.NewMockEmbedder()
	embedder.FailAll = true

	ingestor := NewIngestor(IngestorConfig{Store: store, Embedder: embedder})

	result, err := ingestor.Backfill(context.Background(), domain.BackfillOptions{BatchSize: 2, MaxSweeps: 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Sweeps != 1 {
		t.Errorf("expected termination after one zero-progress sweep, got %d sweeps", result.Sweeps)
	}
	if result.Remained != 4 {
		t.Errorf("expected 4 remained, got %d", result.Remained)
	}
}

func TestBackfill_RespectsMaxSweeps(t *testing.T) {
	store := mocks.NewMockKnowledgeStore()
	seedPendingChunks(t, store, []string{"one", "two", "three", "four", "five", "six"})

	ingestor := NewIngestor(IngestorConfig{Store: store, Embedder: mocks.NewMockEmbedder()})

	result, err := ingestor.Backfill(context.Background(), domain.BackfillOptions{BatchSize: 2, MaxSweeps: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Sweeps != 2 {
		t.Errorf("expected 2 sweeps, got %d", result.Sweeps)
	}
	if result.Updated != 4 {
		t.Errorf("expected 4 updated under the sweep cap, got %d", result.Updated)
	}
	if result.Remained != 2 {
		t.Errorf("expected 2 remained, got %d", result.Remained)
	}
}

func TestBackfill_EmptyKnowledgeBase(t *testing.T) {
	ingestor := NewIngestor(IngestorConfig{
		Store:    mocks.NewMockKnowledgeStore(),
		Embedder: mocks.NewMockEmbedder(),
	})

	result, err := ingestor.Backfill(context.Background(), domain.BackfillOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Sweeps != 0 || result.Updated != 0 {
		t.Errorf("expected no-op run, got %+v", result)
	}
}

func TestBackfill_StoreUnavailable(t *testing.T) {
	store := mocks.NewMockKnowledgeStore()
	store.FailAll = true

	ingestor := NewIngestor(IngestorConfig{Store: store, Embedder: mocks.NewMockEmbedder()})

	_, err := ingestor.Backfill(context.Background(), domain.BackfillOptions{})
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestStats_Passthrough(t *testing.T) {
	store := mocks.NewMockKnowledgeStore()
	seedPendingChunks(t, store, []string{"a", "b"})

	ingestor := NewIngestor(IngestorConfig{Store: store, Embedder: mocks.NewMockEmbedder()})

	stats, err := ingestor.Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalSources != 1 || stats.TotalChunks != 2 || stats.ChunksWithoutEmbeddings != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
