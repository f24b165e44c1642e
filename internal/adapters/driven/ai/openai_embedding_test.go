package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
)

func TestNewOpenAIEmbedding_RequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIEmbedding("", "text-embedding-3-small", "")
	if err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestNewOpenAIEmbedding_DefaultModel(t *testing.T) {
	e, err := NewOpenAIEmbedding("sk-test", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Model() != "text-embedding-3-small" {
		t.Errorf("expected default model, got %s", e.Model())
	}
	if e.Dimensions() != 1536 {
		t.Errorf("expected 1536 dimensions, got %d", e.Dimensions())
	}
}

func TestOpenAIEmbedding_Embed_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("expected /embeddings, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object": "list",
			"data": [{"object": "embedding", "index": 0, "embedding": [0.1, 0.2, 0.3]}],
			"model": "text-embedding-3-small"
		}`))
	}))
	defer server.Close()

	e, err := NewOpenAIEmbedding("sk-test", "text-embedding-3-small", server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := e.Embed(context.Background(), "hello")
	if !result.OK() {
		t.Fatalf("expected OK result, got %s (%s)", result.Status, result.Detail)
	}
	if len(result.Vector) != 3 {
		t.Errorf("expected 3 dimensions, got %d", len(result.Vector))
	}
}

func TestOpenAIEmbedding_Embed_EmptyInput(t *testing.T) {
	e, err := NewOpenAIEmbedding("sk-test", "text-embedding-3-small", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := e.Embed(context.Background(), "   ")
	if result.Status != domain.EmbedEmpty {
		t.Errorf("expected EmbedEmpty, got %s", result.Status)
	}
}

func TestOpenAIEmbedding_Embed_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "Invalid API key"}}`))
	}))
	defer server.Close()

	e, err := NewOpenAIEmbedding("sk-invalid", "text-embedding-3-small", server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := e.Embed(context.Background(), "test")
	if result.Status != domain.EmbedFailed {
		t.Errorf("expected EmbedFailed, got %s", result.Status)
	}
}
