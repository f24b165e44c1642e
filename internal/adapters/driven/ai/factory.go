package ai

import (
	"fmt"
	"time"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
)

// Embedding providers
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// EmbedderConfig selects and configures an embedding provider.
type EmbedderConfig struct {
	Provider string // "ollama" or "openai"
	BaseURL  string
	APIKey   string // OpenAI only
	Model    string
	Timeout  time.Duration
}

// NewEmbedder creates an Embedder for the configured provider.
func NewEmbedder(cfg EmbedderConfig) (driven.Embedder, error) {
	switch cfg.Provider {
	case ProviderOllama, "":
		ollamaCfg := DefaultOllamaConfig(cfg.BaseURL, cfg.Model)
		if cfg.Timeout > 0 {
			ollamaCfg.Timeout = cfg.Timeout
		}
		return NewOllamaEmbedding(ollamaCfg), nil
	case ProviderOpenAI:
		return NewOpenAIEmbedding(cfg.APIKey, cfg.Model, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, cfg.Provider)
	}
}
