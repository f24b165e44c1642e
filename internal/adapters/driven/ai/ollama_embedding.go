package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
)

// Ensure OllamaEmbedding implements Embedder
var _ driven.Embedder = (*OllamaEmbedding)(nil)

// maxEmbedChars is the input ceiling in characters. nomic-embed-text has
// an ~8k token context; anything past this is truncated silently before
// sending - a policy decision, not a fault.
const maxEmbedChars = 32000

// Known dimensions for common Ollama embedding models
var ollamaModelDimensions = map[string]int{
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
	"snowflake-arctic-embed": 1024,
}

// OllamaEmbedding implements Embedder against an Ollama server.
//
// All embedding calls are fail-soft: transport failures, non-2xx
// responses and malformed bodies come back as EmbedFailed results,
// never as errors.
type OllamaEmbedding struct {
	baseURL    string
	model      string
	dimensions int

	client      *http.Client
	probeClient *http.Client
}

// OllamaConfig holds Ollama connection configuration
type OllamaConfig struct {
	// BaseURL is the Ollama endpoint (e.g., http://localhost:11434)
	BaseURL string

	// Model is the embedding model name (e.g., nomic-embed-text)
	Model string

	// Timeout for embedding requests
	Timeout time.Duration

	// ProbeTimeout for the connectivity/model probe; kept short so
	// startup checks do not hang on a stalled server
	ProbeTimeout time.Duration
}

// DefaultOllamaConfig returns sensible defaults
func DefaultOllamaConfig(baseURL, model string) OllamaConfig {
	return OllamaConfig{
		BaseURL:      baseURL,
		Model:        model,
		Timeout:      120 * time.Second,
		ProbeTimeout: 5 * time.Second,
	}
}

// NewOllamaEmbedding creates an Ollama-backed Embedder
func NewOllamaEmbedding(cfg OllamaConfig) *OllamaEmbedding {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}

	dimensions, ok := ollamaModelDimensions[cfg.Model]
	if !ok {
		dimensions = 768
	}

	return &OllamaEmbedding{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		model:       cfg.Model,
		dimensions:  dimensions,
		client:      &http.Client{Timeout: cfg.Timeout},
		probeClient: &http.Client{Timeout: cfg.ProbeTimeout},
	}
}

// embedRequest is the request body for the Ollama embed API
type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embedResponse is the response from the Ollama embed API
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// tagsResponse is the response from the Ollama model-listing endpoint
type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Embed generates an embedding for a single text
func (e *OllamaEmbedding) Embed(ctx context.Context, text string) domain.EmbedResult {
	if len(text) > maxEmbedChars {
		text = text[:maxEmbedChars]
	}
	if strings.TrimSpace(text) == "" {
		return domain.EmbedEmptyResult("nothing to embed")
	}

	body, err := json.Marshal(embedRequest{Model: e.model, Input: text})
	if err != nil {
		return domain.EmbedFailure(fmt.Sprintf("marshal request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return domain.EmbedFailure(fmt.Sprintf("create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return domain.EmbedFailure(fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.EmbedFailure(fmt.Sprintf("ollama returned status %d", resp.StatusCode))
	}

	var embResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return domain.EmbedFailure(fmt.Sprintf("parse response: %v", err))
	}
	if len(embResp.Embeddings) == 0 || len(embResp.Embeddings[0]) == 0 {
		return domain.EmbedFailure("no embeddings in response")
	}

	return domain.EmbedVector(embResp.Embeddings[0])
}

// EmbedBatch generates embeddings for multiple texts, one result per
// input in order. Ollama has no server-side batching, so texts are sent
// sequentially; a failed text leaves the others unaffected.
func (e *OllamaEmbedding) EmbedBatch(ctx context.Context, texts []string) []domain.EmbedResult {
	results := make([]domain.EmbedResult, len(texts))
	for i, text := range texts {
		results[i] = e.Embed(ctx, text)
	}
	return results
}

// Probe checks that Ollama is reachable and the configured model is
// pulled. Returns a human-readable diagnostic either way.
func (e *OllamaEmbedding) Probe(ctx context.Context) (bool, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/api/tags", nil)
	if err != nil {
		return false, fmt.Sprintf("ollama probe: %v", err)
	}

	resp, err := e.probeClient.Do(req)
	if err != nil {
		return false, fmt.Sprintf("cannot connect to Ollama at %s", e.baseURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Sprintf("ollama returned status %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false, fmt.Sprintf("ollama probe: parse response: %v", err)
	}

	for _, m := range tags.Models {
		// Model names carry a tag suffix, e.g. "nomic-embed-text:latest"
		name := m.Name
		if idx := strings.Index(name, ":"); idx != -1 {
			name = name[:idx]
		}
		if name == e.model {
			return true, fmt.Sprintf("Ollama OK, model '%s' available", e.model)
		}
	}

	return false, fmt.Sprintf("model '%s' not found. Run: ollama pull %s", e.model, e.model)
}

// Model returns the model name being used
func (e *OllamaEmbedding) Model() string {
	return e.model
}

// Dimensions returns the embedding dimension size
func (e *OllamaEmbedding) Dimensions() int {
	return e.dimensions
}
