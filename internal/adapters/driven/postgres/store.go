package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.KnowledgeStore = (*Store)(nil)

// Store implements driven.KnowledgeStore directly against PostgreSQL with
// the pgvector extension. It is the self-hosted alternative to the Supabase
// backend and exposes identical semantics.
type Store struct {
	db *DB
}

// NewStore creates a new Store
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// vectorLiteral renders an embedding in pgvector's input format: [f1,f2,...]
func vectorLiteral(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// AddSource inserts a source and returns it with its assigned ID.
func (s *Store) AddSource(ctx context.Context, source *domain.Source) (*domain.Source, error) {
	metadata := source.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO kb_sources (url, title, source_type, metadata)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	created := *source
	err = s.db.QueryRowContext(ctx, query,
		source.URL,
		sql.NullString{String: source.Title, Valid: source.Title != ""},
		source.SourceType,
		metadataJSON,
	).Scan(&created.ID)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("source %s: %w", source.URL, domain.ErrAlreadyExists)
	}
	if err != nil {
		return nil, err
	}

	return &created, nil
}

// GetSource retrieves a source by URL
func (s *Store) GetSource(ctx context.Context, url string) (*domain.Source, error) {
	query := `
		SELECT id, url, title, source_type, metadata
		FROM kb_sources
		WHERE url = $1
	`

	var source domain.Source
	var title sql.NullString
	var metadataJSON []byte

	err := s.db.QueryRowContext(ctx, query, url).Scan(
		&source.ID,
		&source.URL,
		&title,
		&source.SourceType,
		&metadataJSON,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("source %s: %w", url, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	source.Title = title.String
	if err := json.Unmarshal(metadataJSON, &source.Metadata); err != nil {
		return nil, err
	}

	return &source, nil
}

// ListSources retrieves up to limit sources
func (s *Store) ListSources(ctx context.Context, limit int) ([]*domain.Source, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, url, title, source_type, metadata
		FROM kb_sources
		ORDER BY id ASC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*domain.Source
	for rows.Next() {
		var source domain.Source
		var title sql.NullString
		var metadataJSON []byte

		if err := rows.Scan(&source.ID, &source.URL, &title, &source.SourceType, &metadataJSON); err != nil {
			return nil, err
		}
		source.Title = title.String
		if err := json.Unmarshal(metadataJSON, &source.Metadata); err != nil {
			return nil, err
		}
		sources = append(sources, &source)
	}

	return sources, rows.Err()
}

// AddChunk inserts a single chunk and returns it with its assigned ID.
func (s *Store) AddChunk(ctx context.Context, chunk *domain.Chunk) (*domain.Chunk, error) {
	query := `
		INSERT INTO kb_chunks (source_id, url, chunk_number, title, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	created := *chunk
	err := s.db.QueryRowContext(ctx, query,
		chunk.SourceID,
		chunk.URL,
		chunk.ChunkNumber,
		sql.NullString{String: chunk.Title, Valid: chunk.Title != ""},
		chunk.Content,
		embeddingArg(chunk.Embedding),
	).Scan(&created.ID)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("chunk %d of source %d: %w", chunk.ChunkNumber, chunk.SourceID, domain.ErrAlreadyExists)
	}
	if err != nil {
		return nil, err
	}

	return &created, nil
}

// AddChunksBatch inserts chunks in a single transaction. Either every chunk
// is accepted or none are; the returned count is len(chunks) or zero.
func (s *Store) AddChunksBatch(ctx context.Context, chunks []*domain.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO kb_chunks (source_id, url, chunk_number, title, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, chunk := range chunks {
		_, err := tx.ExecContext(ctx, query,
			chunk.SourceID,
			chunk.URL,
			chunk.ChunkNumber,
			sql.NullString{String: chunk.Title, Valid: chunk.Title != ""},
			chunk.Content,
			embeddingArg(chunk.Embedding),
		)
		if err != nil {
			_ = tx.Rollback()
			if isUniqueViolation(err) {
				return 0, fmt.Errorf("chunk %d of source %d: %w", chunk.ChunkNumber, chunk.SourceID, domain.ErrAlreadyExists)
			}
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return len(chunks), nil
}

// embeddingArg returns the pgvector literal for a non-empty embedding, or
// NULL for a chunk still awaiting backfill.
func embeddingArg(vec []float32) any {
	if len(vec) == 0 {
		return nil
	}
	return vectorLiteral(vec)
}

// ChunksWithoutEmbeddings returns up to limit chunks missing embeddings,
// oldest first so repeated sweeps make progress.
func (s *Store) ChunksWithoutEmbeddings(ctx context.Context, limit int) ([]*domain.Chunk, error) {
	query := `
		SELECT id, source_id, url, chunk_number, title, content
		FROM kb_chunks
		WHERE embedding IS NULL
		ORDER BY id ASC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*domain.Chunk
	for rows.Next() {
		var chunk domain.Chunk
		var title sql.NullString

		if err := rows.Scan(&chunk.ID, &chunk.SourceID, &chunk.URL, &chunk.ChunkNumber, &title, &chunk.Content); err != nil {
			return nil, err
		}
		chunk.Title = title.String
		chunks = append(chunks, &chunk)
	}

	return chunks, rows.Err()
}

// UpdateChunkEmbedding sets the embedding for a chunk
func (s *Store) UpdateChunkEmbedding(ctx context.Context, id int64, embedding []float32) error {
	query := `UPDATE kb_chunks SET embedding = $1::vector WHERE id = $2`
	result, err := s.db.ExecContext(ctx, query, vectorLiteral(embedding), id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("chunk %d: %w", id, domain.ErrNotFound)
	}

	return nil
}

// CountChunks returns the number of chunks matching the filter
func (s *Store) CountChunks(ctx context.Context, filter domain.ChunkFilter) (int, error) {
	query := `SELECT COUNT(*) FROM kb_chunks`
	switch filter {
	case domain.ChunkFilterWithEmbedding:
		query += ` WHERE embedding IS NOT NULL`
	case domain.ChunkFilterWithoutEmbedding:
		query += ` WHERE embedding IS NULL`
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// SearchSemantic returns chunks ranked by cosine similarity to the query
// embedding, filtered to similarity >= threshold.
func (s *Store) SearchSemantic(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*domain.Chunk, error) {
	query := `
		SELECT id, source_id, url, chunk_number, title, content,
		       1 - (embedding <=> $1::vector) AS similarity
		FROM kb_chunks
		WHERE embedding IS NOT NULL
		  AND 1 - (embedding <=> $1::vector) >= $2
		ORDER BY similarity DESC
		LIMIT $3
	`

	return s.queryChunksScored(ctx, query, vectorLiteral(embedding), threshold, limit)
}

// SearchHybrid blends cosine similarity with full-text rank. semanticWeight
// is the share given to the vector score; the remainder goes to ts_rank_cd
// over an english tsvector of the content.
func (s *Store) SearchHybrid(ctx context.Context, embedding []float32, queryText string, limit int, semanticWeight float64) ([]*domain.Chunk, error) {
	query := `
		SELECT id, source_id, url, chunk_number, title, content,
		       $3 * (1 - (embedding <=> $1::vector)) +
		       (1 - $3) * ts_rank_cd(to_tsvector('english', content), plainto_tsquery('english', $2)) AS combined_score
		FROM kb_chunks
		WHERE embedding IS NOT NULL
		ORDER BY combined_score DESC
		LIMIT $4
	`

	return s.queryChunksScored(ctx, query, vectorLiteral(embedding), queryText, semanticWeight, limit)
}

func (s *Store) queryChunksScored(ctx context.Context, query string, args ...any) ([]*domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*domain.Chunk
	for rows.Next() {
		var chunk domain.Chunk
		var title sql.NullString

		err := rows.Scan(
			&chunk.ID,
			&chunk.SourceID,
			&chunk.URL,
			&chunk.ChunkNumber,
			&title,
			&chunk.Content,
			&chunk.Similarity,
		)
		if err != nil {
			return nil, err
		}
		chunk.Title = title.String
		chunks = append(chunks, &chunk)
	}

	return chunks, rows.Err()
}

// Stats reports knowledge base totals
func (s *Store) Stats(ctx context.Context) (*domain.Stats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM kb_sources),
			COUNT(*),
			COUNT(embedding),
			COUNT(*) - COUNT(embedding)
		FROM kb_chunks
	`

	var stats domain.Stats
	err := s.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalSources,
		&stats.TotalChunks,
		&stats.ChunksWithEmbeddings,
		&stats.ChunksWithoutEmbeddings,
	)
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

// Ping checks store reachability
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}
