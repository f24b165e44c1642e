package domain

// Source represents a document origin (a URL or file path) in the knowledgebase.
// Sources are created once at ingestion start and never mutated afterwards.
type Source struct {
	ID         int64          `json:"id"`
	URL        string         `json:"url"` // Unique per source
	Title      string         `json:"title,omitempty"`
	SourceType string         `json:"source_type"` // "web", "file", etc.
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Chunk is the unit of embedding and retrieval: a numbered slice of a
// source's content. The embedding stays nil until backfill attaches it.
type Chunk struct {
	ID          int64  `json:"id"`
	SourceID    int64  `json:"source_id"`
	URL         string `json:"url"` // Denormalized from the source for display
	ChunkNumber int    `json:"chunk_number"`
	Title       string `json:"title,omitempty"`
	Content     string `json:"content"`

	// Embedding is nil until backfilled. (source_id, chunk_number) is
	// unique; the store enforces it.
	Embedding []float32 `json:"embedding,omitempty"`

	// Similarity is populated only on search results, never persisted.
	// Search results carry zero sentinels for SourceID and ChunkNumber:
	// the ranking procedures do not return them.
	Similarity float64 `json:"similarity,omitempty"`
}

// ChunkText is a pre-chunked piece of content handed to the ingestion
// pipeline. Chunk boundaries are computed upstream; the pipeline only
// preserves the numbering.
type ChunkText struct {
	Number  int    `json:"number"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// ParsedDocument is the normalized output of the document conversion
// boundary: any supported file reduced to markdown plus metadata.
type ParsedDocument struct {
	Path     string         `json:"path"`
	Title    string         `json:"title,omitempty"`
	Content  string         `json:"content"` // Markdown
	Format   string         `json:"format"`  // "md", "csv", "pdf", ...
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Stats aggregates knowledgebase counters for progress reporting.
type Stats struct {
	TotalSources            int `json:"total_sources"`
	TotalChunks             int `json:"total_chunks"`
	ChunksWithEmbeddings    int `json:"chunks_with_embeddings"`
	ChunksWithoutEmbeddings int `json:"chunks_without_embeddings"`
}

// ChunkFilter selects chunks by embedding presence for counting.
type ChunkFilter string

const (
	ChunkFilterAll              ChunkFilter = "all"
	ChunkFilterWithEmbedding    ChunkFilter = "with_embedding"
	ChunkFilterWithoutEmbedding ChunkFilter = "without_embedding"
)
