package mocks

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
)

// MockKnowledgeStore is an in-memory KnowledgeStore for testing. It
// enforces the same key constraints as the real store: unique source
// URLs and unique (source_id, chunk_number) pairs.
type MockKnowledgeStore struct {
	mu sync.RWMutex

	sources  map[int64]*domain.Source
	byURL    map[string]int64
	chunks   map[int64]*domain.Chunk
	chunkKey map[[2]int64]bool // (source_id, chunk_number)

	nextSourceID int64
	nextChunkID  int64

	// FailAll makes every call fail, simulating an unreachable store.
	FailAll bool

	// BatchRejected makes AddChunksBatch report zero accepted.
	BatchRejected bool
}

// NewMockKnowledgeStore creates an empty MockKnowledgeStore.
func NewMockKnowledgeStore() *MockKnowledgeStore {
	return &MockKnowledgeStore{
		sources:      make(map[int64]*domain.Source),
		byURL:        make(map[string]int64),
		chunks:       make(map[int64]*domain.Chunk),
		chunkKey:     make(map[[2]int64]bool),
		nextSourceID: 1,
		nextChunkID:  1,
	}
}

func (m *MockKnowledgeStore) AddSource(_ context.Context, source *domain.Source) (*domain.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAll {
		return nil, domain.ErrStoreUnavailable
	}
	if _, ok := m.byURL[source.URL]; ok {
		return nil, domain.ErrAlreadyExists
	}
	created := *source
	created.ID = m.nextSourceID
	m.nextSourceID++
	m.sources[created.ID] = &created
	m.byURL[created.URL] = created.ID
	return &created, nil
}

func (m *MockKnowledgeStore) GetSource(_ context.Context, url string) (*domain.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailAll {
		return nil, domain.ErrStoreUnavailable
	}
	id, ok := m.byURL[url]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m.sources[id], nil
}

func (m *MockKnowledgeStore) ListSources(_ context.Context, limit int) ([]*domain.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailAll {
		return nil, domain.ErrStoreUnavailable
	}
	var out []*domain.Source
	for _, s := range m.sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockKnowledgeStore) AddChunk(ctx context.Context, chunk *domain.Chunk) (*domain.Chunk, error) {
	n, err := m.AddChunksBatch(ctx, []*domain.Chunk{chunk})
	if err != nil {
		return nil, err
	}
	if n != 1 {
		return nil, domain.ErrStoreUnavailable
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.chunks[m.nextChunkID-1], nil
}

func (m *MockKnowledgeStore) AddChunksBatch(_ context.Context, chunks []*domain.Chunk) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAll {
		return 0, domain.ErrStoreUnavailable
	}
	if m.BatchRejected {
		return 0, domain.ErrInvalidInput
	}
	// All-or-nothing: validate the whole batch before inserting any row.
	for _, c := range chunks {
		if m.chunkKey[[2]int64{c.SourceID, int64(c.ChunkNumber)}] {
			return 0, domain.ErrAlreadyExists
		}
	}
	for _, c := range chunks {
		stored := *c
		stored.ID = m.nextChunkID
		m.nextChunkID++
		m.chunks[stored.ID] = &stored
		m.chunkKey[[2]int64{c.SourceID, int64(c.ChunkNumber)}] = true
	}
	return len(chunks), nil
}

func (m *MockKnowledgeStore) ChunksWithoutEmbeddings(_ context.Context, limit int) ([]*domain.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailAll {
		return nil, domain.ErrStoreUnavailable
	}
	var out []*domain.Chunk
	for _, c := range m.chunks {
		if c.Embedding == nil {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockKnowledgeStore) UpdateChunkEmbedding(_ context.Context, id int64, vec []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAll {
		return domain.ErrStoreUnavailable
	}
	c, ok := m.chunks[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Embedding = vec
	return nil
}

func (m *MockKnowledgeStore) CountChunks(_ context.Context, filter domain.ChunkFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailAll {
		return 0, domain.ErrStoreUnavailable
	}
	count := 0
	for _, c := range m.chunks {
		switch filter {
		case domain.ChunkFilterWithEmbedding:
			if c.Embedding != nil {
				count++
			}
		case domain.ChunkFilterWithoutEmbedding:
			if c.Embedding == nil {
				count++
			}
		default:
			count++
		}
	}
	return count, nil
}

func (m *MockKnowledgeStore) SearchSemantic(_ context.Context, vec []float32, limit int, threshold float64) ([]*domain.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailAll {
		return nil, domain.ErrStoreUnavailable
	}
	return m.rank(vec, "", limit, threshold, 1.0), nil
}

func (m *MockKnowledgeStore) SearchHybrid(_ context.Context, vec []float32, query string, limit int, semanticWeight float64) ([]*domain.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailAll {
		return nil, domain.ErrStoreUnavailable
	}
	return m.rank(vec, query, limit, 0, semanticWeight), nil
}

// rank scores embedded chunks by weighted cosine similarity plus keyword
// overlap, mirroring the store-side ranking procedures closely enough
// for pipeline tests.
func (m *MockKnowledgeStore) rank(vec []float32, query string, limit int, threshold, semanticWeight float64) []*domain.Chunk {
	var results []*domain.Chunk
	for _, c := range m.chunks {
		if c.Embedding == nil {
			continue
		}
		score := semanticWeight * cosine(vec, c.Embedding)
		if query != "" && semanticWeight < 1 {
			score += (1 - semanticWeight) * keywordScore(query, c.Content)
		}
		if score < threshold {
			continue
		}
		hit := &domain.Chunk{
			ID:         c.ID,
			URL:        c.URL,
			Title:      c.Title,
			Content:    c.Content,
			Similarity: score,
		}
		results = append(results, hit)
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ID < results[j].ID
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func keywordScore(query, content string) float64 {
	qWords := strings.Fields(strings.ToLower(query))
	if len(qWords) == 0 {
		return 0
	}
	lc := strings.ToLower(content)
	hits := 0
	for _, w := range qWords {
		if strings.Contains(lc, w) {
			hits++
		}
	}
	return float64(hits) / float64(len(qWords))
}

func (m *MockKnowledgeStore) Stats(ctx context.Context) (*domain.Stats, error) {
	if m.FailAll {
		return nil, domain.ErrStoreUnavailable
	}
	total, _ := m.CountChunks(ctx, domain.ChunkFilterAll)
	with, _ := m.CountChunks(ctx, domain.ChunkFilterWithEmbedding)
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &domain.Stats{
		TotalSources:            len(m.sources),
		TotalChunks:             total,
		ChunksWithEmbeddings:    with,
		ChunksWithoutEmbeddings: total - with,
	}, nil
}

func (m *MockKnowledgeStore) Ping(_ context.Context) error {
	if m.FailAll {
		return domain.ErrStoreUnavailable
	}
	return nil
}
