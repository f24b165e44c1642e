package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.KnowledgeStore = (*Store)(nil)

// Table and RPC names on the Supabase side
const (
	sourcesTable = "kb_sources"
	chunksTable  = "kb_chunks"

	rpcSearchSemantic = "kb_search_semantic"
	rpcSearchHybrid   = "kb_search_hybrid"
	rpcStats          = "kb_stats"
)

// Store implements driven.KnowledgeStore against the Supabase PostgREST
// API plus the kb_* stored search procedures.
type Store struct {
	baseURL string
	apiKey  string

	client      *http.Client
	countClient *http.Client
}

// Config holds Supabase connection configuration
type Config struct {
	// BaseURL is the project endpoint (e.g., https://xyz.supabase.co)
	BaseURL string

	// APIKey is the service role key used for both apikey and bearer headers
	APIKey string

	// Timeout for REST and RPC requests
	Timeout time.Duration

	// CountTimeout for exact-count HEAD requests; kept shorter since
	// counts back progress reporting, not the data path
	CountTimeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig(baseURL, apiKey string) Config {
	return Config{
		BaseURL:      baseURL,
		APIKey:       apiKey,
		Timeout:      30 * time.Second,
		CountTimeout: 10 * time.Second,
	}
}

// NewStore creates a Supabase-backed KnowledgeStore
func NewStore(cfg Config) *Store {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CountTimeout <= 0 {
		cfg.CountTimeout = 10 * time.Second
	}
	return &Store{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		client:      &http.Client{Timeout: cfg.Timeout},
		countClient: &http.Client{Timeout: cfg.CountTimeout},
	}
}

// sourceRow is the wire shape of a kb_sources row. Nullable columns are
// pointers; the row is validated here at the adapter boundary instead of
// trusting field presence at call sites.
type sourceRow struct {
	ID         int64          `json:"id"`
	URL        string         `json:"url"`
	Title      *string        `json:"title"`
	SourceType string         `json:"source_type"`
	Metadata   map[string]any `json:"metadata"`
}

func (r sourceRow) toDomain() *domain.Source {
	s := &domain.Source{
		ID:         r.ID,
		URL:        r.URL,
		SourceType: r.SourceType,
		Metadata:   r.Metadata,
	}
	if r.Title != nil {
		s.Title = *r.Title
	}
	return s
}

// chunkRow is the wire shape of a kb_chunks row
type chunkRow struct {
	ID          int64     `json:"id"`
	SourceID    int64     `json:"source_id"`
	URL         string    `json:"url"`
	ChunkNumber int       `json:"chunk_number"`
	Title       *string   `json:"title"`
	Content     string    `json:"content"`
	Embedding   []float32 `json:"embedding,omitempty"`
}

func (r chunkRow) toDomain() *domain.Chunk {
	c := &domain.Chunk{
		ID:          r.ID,
		SourceID:    r.SourceID,
		URL:         r.URL,
		ChunkNumber: r.ChunkNumber,
		Content:     r.Content,
		Embedding:   r.Embedding,
	}
	if r.Title != nil {
		c.Title = *r.Title
	}
	return c
}

// chunkInsert is the POST body for a chunk; the store assigns the ID
type chunkInsert struct {
	SourceID    int64     `json:"source_id"`
	URL         string    `json:"url"`
	ChunkNumber int       `json:"chunk_number"`
	Title       string    `json:"title,omitempty"`
	Content     string    `json:"content"`
	Embedding   []float32 `json:"embedding"`
}

// searchRow is the shape returned by the ranking procedures. source_id
// and chunk_number are not part of the result set.
type searchRow struct {
	ID            int64    `json:"id"`
	URL           string   `json:"url"`
	Title         *string  `json:"title"`
	Content       string   `json:"content"`
	Similarity    *float64 `json:"similarity"`
	CombinedScore *float64 `json:"combined_score"`
}

func (r searchRow) toDomain() *domain.Chunk {
	// SourceID and ChunkNumber stay zero: the procedures do not return
	// them and they must not be guessed.
	c := &domain.Chunk{
		ID:      r.ID,
		URL:     r.URL,
		Content: r.Content,
	}
	if r.Title != nil {
		c.Title = *r.Title
	}
	switch {
	case r.Similarity != nil:
		c.Similarity = *r.Similarity
	case r.CombinedScore != nil:
		c.Similarity = *r.CombinedScore
	}
	return c
}

// do issues a PostgREST request against a table endpoint.
func (s *Store) do(ctx context.Context, client *http.Client, method, table string, params url.Values, body any, prefer string) (*http.Response, error) {
	endpoint := s.baseURL + "/rest/v1/" + table
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return resp, nil
}

// decodeRows decodes a PostgREST response body that may be either a
// JSON array of rows or a single object.
func decodeRows[T any](body io.Reader) ([]T, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var rows []T
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("parse response: %w", err)
		}
		return rows, nil
	}

	var row T
	if err := json.Unmarshal(trimmed, &row); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return []T{row}, nil
}

// AddSource inserts a source. A duplicate URL maps to ErrAlreadyExists
// via the store's unique constraint (HTTP 409).
func (s *Store) AddSource(ctx context.Context, source *domain.Source) (*domain.Source, error) {
	metadata := source.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	body := map[string]any{
		"url":         source.URL,
		"title":       source.Title,
		"source_type": source.SourceType,
		"metadata":    metadata,
	}

	resp, err := s.do(ctx, s.client, http.MethodPost, sourcesTable, nil, body, "return=representation")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusCreated:
		rows, err := decodeRows[sourceRow](resp.Body)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("add source: empty response")
		}
		return rows[0].toDomain(), nil
	case resp.StatusCode == http.StatusConflict:
		return nil, fmt.Errorf("source %s: %w", source.URL, domain.ErrAlreadyExists)
	default:
		return nil, fmt.Errorf("add source: status %d", resp.StatusCode)
	}
}

// GetSource retrieves a source by URL
func (s *Store) GetSource(ctx context.Context, sourceURL string) (*domain.Source, error) {
	params := url.Values{}
	params.Set("url", "eq."+sourceURL)
	params.Set("limit", "1")

	resp, err := s.do(ctx, s.client, http.MethodGet, sourcesTable, params, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get source: status %d", resp.StatusCode)
	}

	rows, err := decodeRows[sourceRow](resp.Body)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("source %s: %w", sourceURL, domain.ErrNotFound)
	}
	return rows[0].toDomain(), nil
}

// ListSources lists up to limit sources
func (s *Store) ListSources(ctx context.Context, limit int) ([]*domain.Source, error) {
	if limit <= 0 {
		limit = 100
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("order", "id.asc")

	resp, err := s.do(ctx, s.client, http.MethodGet, sourcesTable, params, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list sources: status %d", resp.StatusCode)
	}

	rows, err := decodeRows[sourceRow](resp.Body)
	if err != nil {
		return nil, err
	}
	sources := make([]*domain.Source, 0, len(rows))
	for _, r := range rows {
		sources = append(sources, r.toDomain())
	}
	return sources, nil
}

// AddChunk inserts a single chunk
func (s *Store) AddChunk(ctx context.Context, chunk *domain.Chunk) (*domain.Chunk, error) {
	body := chunkInsert{
		SourceID:    chunk.SourceID,
		URL:         chunk.URL,
		ChunkNumber: chunk.ChunkNumber,
		Title:       chunk.Title,
		Content:     chunk.Content,
		Embedding:   chunk.Embedding,
	}

	resp, err := s.do(ctx, s.client, http.MethodPost, chunksTable, nil, body, "return=representation")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusCreated:
		rows, err := decodeRows[chunkRow](resp.Body)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("add chunk: empty response")
		}
		return rows[0].toDomain(), nil
	case resp.StatusCode == http.StatusConflict:
		return nil, fmt.Errorf("chunk %d/%d: %w", chunk.SourceID, chunk.ChunkNumber, domain.ErrAlreadyExists)
	default:
		return nil, fmt.Errorf("add chunk: status %d", resp.StatusCode)
	}
}

// AddChunksBatch inserts chunks as a single request. PostgREST applies
// the whole array in one statement, so acceptance is all-or-nothing:
// the returned count is len(chunks) on success and zero otherwise.
func (s *Store) AddChunksBatch(ctx context.Context, chunks []*domain.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	body := make([]chunkInsert, 0, len(chunks))
	for _, c := range chunks {
		body = append(body, chunkInsert{
			SourceID:    c.SourceID,
			URL:         c.URL,
			ChunkNumber: c.ChunkNumber,
			Title:       c.Title,
			Content:     c.Content,
			Embedding:   c.Embedding,
		})
	}

	resp, err := s.do(ctx, s.client, http.MethodPost, chunksTable, nil, body, "")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return len(chunks), nil
	case resp.StatusCode == http.StatusConflict:
		return 0, fmt.Errorf("chunk batch: %w", domain.ErrAlreadyExists)
	default:
		return 0, fmt.Errorf("add chunks batch: status %d", resp.StatusCode)
	}
}

// ChunksWithoutEmbeddings returns up to limit chunks with no embedding,
// ordered by id for stable repeated polling.
func (s *Store) ChunksWithoutEmbeddings(ctx context.Context, limit int) ([]*domain.Chunk, error) {
	if limit <= 0 {
		limit = 50
	}
	params := url.Values{}
	params.Set("embedding", "is.null")
	params.Set("select", "id,source_id,url,chunk_number,title,content")
	params.Set("order", "id.asc")
	params.Set("limit", strconv.Itoa(limit))

	resp, err := s.do(ctx, s.client, http.MethodGet, chunksTable, params, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chunks without embeddings: status %d", resp.StatusCode)
	}

	rows, err := decodeRows[chunkRow](resp.Body)
	if err != nil {
		return nil, err
	}
	chunks := make([]*domain.Chunk, 0, len(rows))
	for _, r := range rows {
		chunks = append(chunks, r.toDomain())
	}
	return chunks, nil
}

// UpdateChunkEmbedding sets the embedding for exactly one chunk
func (s *Store) UpdateChunkEmbedding(ctx context.Context, id int64, vec []float32) error {
	params := url.Values{}
	params.Set("id", "eq."+strconv.FormatInt(id, 10))

	resp, err := s.do(ctx, s.client, http.MethodPatch, chunksTable, params, map[string]any{"embedding": vec}, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("update chunk embedding: status %d", resp.StatusCode)
	}
	return nil
}

// CountChunks returns an exact count using a HEAD request with
// Prefer: count=exact, reading the total from the Content-Range header.
func (s *Store) CountChunks(ctx context.Context, filter domain.ChunkFilter) (int, error) {
	params := url.Values{}
	params.Set("select", "id")
	switch filter {
	case domain.ChunkFilterWithEmbedding:
		params.Set("embedding", "not.is.null")
	case domain.ChunkFilterWithoutEmbedding:
		params.Set("embedding", "is.null")
	}

	resp, err := s.do(ctx, s.countClient, http.MethodHead, chunksTable, params, nil, "count=exact")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("count chunks: status %d", resp.StatusCode)
	}

	return parseContentRangeTotal(resp.Header.Get("Content-Range"))
}

// parseContentRangeTotal extracts the total from a Content-Range header
// of the form "0-24/3573" or "*/0".
func parseContentRangeTotal(header string) (int, error) {
	idx := strings.LastIndex(header, "/")
	if idx == -1 {
		return 0, fmt.Errorf("malformed content-range %q", header)
	}
	total, err := strconv.Atoi(header[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("malformed content-range %q", header)
	}
	return total, nil
}

// rpc invokes a stored procedure and decodes its rows.
func rpc[T any](ctx context.Context, s *Store, name string, args any) ([]T, error) {
	resp, err := s.do(ctx, s.client, http.MethodPost, "rpc/"+name, nil, args, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rpc %s: status %d", name, resp.StatusCode)
	}
	return decodeRows[T](resp.Body)
}

// SearchSemantic invokes the vector similarity ranking procedure
func (s *Store) SearchSemantic(ctx context.Context, vec []float32, limit int, threshold float64) ([]*domain.Chunk, error) {
	rows, err := rpc[searchRow](ctx, s, rpcSearchSemantic, map[string]any{
		"query_embedding":      vec,
		"match_count":          limit,
		"similarity_threshold": threshold,
	})
	if err != nil {
		return nil, err
	}
	return searchRowsToChunks(rows), nil
}

// SearchHybrid invokes the fused vector+keyword ranking procedure
func (s *Store) SearchHybrid(ctx context.Context, vec []float32, query string, limit int, semanticWeight float64) ([]*domain.Chunk, error) {
	rows, err := rpc[searchRow](ctx, s, rpcSearchHybrid, map[string]any{
		"query_embedding": vec,
		"query_text":      query,
		"match_count":     limit,
		"semantic_weight": semanticWeight,
	})
	if err != nil {
		return nil, err
	}
	return searchRowsToChunks(rows), nil
}

func searchRowsToChunks(rows []searchRow) []*domain.Chunk {
	chunks := make([]*domain.Chunk, 0, len(rows))
	for _, r := range rows {
		chunks = append(chunks, r.toDomain())
	}
	return chunks
}

// Stats returns aggregate counters via the kb_stats procedure
func (s *Store) Stats(ctx context.Context) (*domain.Stats, error) {
	rows, err := rpc[domain.Stats](ctx, s, rpcStats, map[string]any{})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &domain.Stats{}, nil
	}
	return &rows[0], nil
}

// Ping checks if the REST surface is reachable
func (s *Store) Ping(ctx context.Context) error {
	params := url.Values{}
	params.Set("select", "id")
	params.Set("limit", "1")

	resp, err := s.do(ctx, s.countClient, http.MethodGet, sourcesTable, params, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: status %d", domain.ErrStoreUnavailable, resp.StatusCode)
	}
	return nil
}
