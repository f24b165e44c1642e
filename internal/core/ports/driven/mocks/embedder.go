package mocks

import (
	"context"
	"math"
	"strings"
	"sync"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
)

// MockEmbedder is a deterministic in-memory Embedder for testing.
// Vectors are derived from the text so equal texts embed equally.
type MockEmbedder struct {
	mu sync.Mutex

	// FailTexts lists texts whose embedding should fail with a
	// transport-style failure.
	FailTexts map[string]bool

	// FailAll makes every call fail, simulating an unreachable service.
	FailAll bool

	dims  int
	calls []string
}

// NewMockEmbedder creates a MockEmbedder with small test vectors.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		FailTexts: make(map[string]bool),
		dims:      4,
	}
}

// Calls returns the texts embedded so far.
func (m *MockEmbedder) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockEmbedder) Embed(_ context.Context, text string) domain.EmbedResult {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	failAll := m.FailAll
	failThis := m.FailTexts[text]
	m.mu.Unlock()

	if failAll || failThis {
		return domain.EmbedFailure("mock: embedding failed")
	}
	if strings.TrimSpace(text) == "" {
		return domain.EmbedEmptyResult("mock: empty input")
	}
	return domain.EmbedVector(TextVector(text, m.dims))
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) []domain.EmbedResult {
	results := make([]domain.EmbedResult, len(texts))
	for i, t := range texts {
		results[i] = m.Embed(ctx, t)
	}
	return results
}

func (m *MockEmbedder) Probe(_ context.Context) (bool, string) {
	if m.FailAll {
		return false, "mock: service unreachable"
	}
	return true, "mock: ok"
}

func (m *MockEmbedder) Model() string { return "mock-embed" }

func (m *MockEmbedder) Dimensions() int { return m.dims }

// TextVector derives a deterministic unit-length vector from text.
func TextVector(text string, dims int) []float32 {
	vec := make([]float32, dims)
	for i, r := range text {
		vec[i%dims] += float32(r%31) / 31.0
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum > 0 {
		inv := float32(1 / math.Sqrt(sum))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}
