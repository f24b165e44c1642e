package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "supabase", cfg.StoreBackend)
	assert.Equal(t, 10, cfg.Search.Limit)
	assert.Equal(t, 0.5, cfg.Search.Threshold)
	assert.Equal(t, 0.7, cfg.Search.SemanticWeight)
	assert.Equal(t, 50, cfg.Backfill.BatchSize)
	assert.Equal(t, 100, cfg.Backfill.MaxSweeps)
	assert.Equal(t, 4, cfg.Backfill.Workers)
	assert.True(t, cfg.EmbedOnIngest)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("SEARCH_LIMIT", "25")
	t.Setenv("SEARCH_THRESHOLD", "0.35")
	t.Setenv("EMBED_ON_INGEST", "false")

	cfg := Load()

	assert.Equal(t, "postgres", cfg.StoreBackend)
	assert.Equal(t, 25, cfg.Search.Limit)
	assert.Equal(t, 0.35, cfg.Search.Threshold)
	assert.False(t, cfg.EmbedOnIngest)
}

func TestLoad_BadNumberFallsBack(t *testing.T) {
	t.Setenv("SEARCH_LIMIT", "not-a-number")

	cfg := Load()
	assert.Equal(t, 10, cfg.Search.Limit)
}
