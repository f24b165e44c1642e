package ai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
)

// Ensure OpenAIEmbedding implements Embedder
var _ driven.Embedder = (*OpenAIEmbedding)(nil)

// Dimensions for OpenAI embedding models
var openAIModelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIEmbedding implements Embedder using the OpenAI embeddings API.
// It honors the same fail-soft contract as the Ollama adapter.
type OpenAIEmbedding struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewOpenAIEmbedding creates an OpenAI-backed Embedder. baseURL is
// optional and exists for API-compatible gateways.
func NewOpenAIEmbedding(apiKey, model, baseURL string) (*OpenAIEmbedding, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", domain.ErrInvalidInput)
	}
	if model == "" {
		model = "text-embedding-3-small"
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	dimensions, ok := openAIModelDimensions[model]
	if !ok {
		dimensions = 1536
	}

	return &OpenAIEmbedding{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		dimensions: dimensions,
	}, nil
}

// Embed generates an embedding for a single text
func (e *OpenAIEmbedding) Embed(ctx context.Context, text string) domain.EmbedResult {
	if len(text) > maxEmbedChars {
		text = text[:maxEmbedChars]
	}
	if strings.TrimSpace(text) == "" {
		return domain.EmbedEmptyResult("nothing to embed")
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{text},
	})
	if err != nil {
		return domain.EmbedFailure(fmt.Sprintf("openai: %v", err))
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return domain.EmbedFailure("no embedding data returned")
	}

	return domain.EmbedVector(resp.Data[0].Embedding)
}

// EmbedBatch generates embeddings for multiple texts, one result per
// input in order; each element is computed independently.
func (e *OpenAIEmbedding) EmbedBatch(ctx context.Context, texts []string) []domain.EmbedResult {
	results := make([]domain.EmbedResult, len(texts))
	for i, text := range texts {
		results[i] = e.Embed(ctx, text)
	}
	return results
}

// Probe checks API reachability and that the configured model is listed
func (e *OpenAIEmbedding) Probe(ctx context.Context) (bool, string) {
	models, err := e.client.ListModels(ctx)
	if err != nil {
		return false, fmt.Sprintf("cannot reach OpenAI API: %v", err)
	}
	for _, m := range models.Models {
		if m.ID == e.model {
			return true, fmt.Sprintf("OpenAI OK, model '%s' available", e.model)
		}
	}
	return false, fmt.Sprintf("model '%s' not listed by API", e.model)
}

// Model returns the model name being used
func (e *OpenAIEmbedding) Model() string {
	return e.model
}

// Dimensions returns the embedding dimension size
func (e *OpenAIEmbedding) Dimensions() int {
	return e.dimensions
}
