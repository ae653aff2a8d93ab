// Package knowledge provides direct vector search over the documents
// table. Indexing during ingestion goes through the Genkit DocStore;
// this package serves the paths that need raw access: the search
// subcommand, the /search endpoint, and readiness checks.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/cesarhb/kb-engine-playground/internal/log"
)

// Querier is the subset of pgxpool.Pool the store needs. Defined here
// so tests can substitute a mock.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// identRe restricts table names to plain identifiers. The table name
// is interpolated into SQL text (placeholders cannot carry
// identifiers), so anything else is rejected up front.
var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Store performs vector search against one documents table.
// Safe for concurrent use.
type Store struct {
	db       Querier
	embedder ai.Embedder
	table    string
	logger   log.Logger
}

// New creates a Store over the given table. A nil logger discards log
// output.
func New(db Querier, embedder ai.Embedder, table string, logger log.Logger) (*Store, error) {
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: db, embedder: embedder, table: table, logger: logger}, nil
}

// Add embeds and upserts a single document. The ingestion pipeline
// indexes through the DocStore; Add exists for tooling and tests that
// need to write a document directly.
func (s *Store) Add(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document ID must not be empty")
	}

	embedding, err := s.embed(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("embedding document %q: %w", doc.ID, err)
	}

	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata for %q: %w", doc.ID, err)
	}

	sourceType, _ := doc.Metadata["source_type"].(string)

	query := fmt.Sprintf(`
		INSERT INTO %s (id, content, embedding, metadata, source_type)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata,
			source_type = EXCLUDED.source_type`, s.table)

	if _, err := s.db.Exec(ctx, query, doc.ID, doc.Content, embedding, metadataJSON, sourceType); err != nil {
		return fmt.Errorf("upserting document %q: %w", doc.ID, err)
	}

	s.logger.Debug("document added", "id", doc.ID, "content_length", len(doc.Content))
	return nil
}

// Search embeds the query and returns the most similar documents
// ordered by cosine similarity.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	embedding, err := s.embed(queryCtx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("query embedding timeout: %w", err)
		}
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	var (
		rows pgx.Rows
		sql  string
	)
	if len(cfg.filter) > 0 {
		filterJSON, marshalErr := json.Marshal(cfg.filter)
		if marshalErr != nil {
			return nil, fmt.Errorf("marshaling filter: %w", marshalErr)
		}
		sql = fmt.Sprintf(`
			SELECT id, content, metadata, created_at,
			       1 - (embedding <=> $1) AS similarity
			FROM %s
			WHERE embedding IS NOT NULL AND metadata @> $2
			ORDER BY embedding <=> $1
			LIMIT $3`, s.table)
		rows, err = s.db.Query(queryCtx, sql, embedding, filterJSON, cfg.topK)
	} else {
		sql = fmt.Sprintf(`
			SELECT id, content, metadata, created_at,
			       1 - (embedding <=> $1) AS similarity
			FROM %s
			WHERE embedding IS NOT NULL
			ORDER BY embedding <=> $1
			LIMIT $2`, s.table)
		rows, err = s.db.Query(queryCtx, sql, embedding, cfg.topK)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			r            Result
			metadataJSON []byte
			createdAt    time.Time
		)
		if err := rows.Scan(&r.ID, &r.Content, &metadataJSON, &createdAt, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		r.CreatedAt = createdAt
		if err := json.Unmarshal(metadataJSON, &r.Metadata); err != nil {
			s.logger.Warn("unparseable document metadata", "id", r.ID, "error", err)
			r.Metadata = map[string]any{}
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search rows: %w", err)
	}
	return results, nil
}

// Count returns the number of stored documents, optionally restricted
// to those whose metadata contains filter.
func (s *Store) Count(ctx context.Context, filter map[string]any) (int, error) {
	var (
		count int64
		err   error
	)
	if len(filter) > 0 {
		filterJSON, marshalErr := json.Marshal(filter)
		if marshalErr != nil {
			return 0, fmt.Errorf("marshaling filter: %w", marshalErr)
		}
		err = s.db.QueryRow(ctx,
			fmt.Sprintf("SELECT count(*) FROM %s WHERE metadata @> $1", s.table),
			filterJSON).Scan(&count)
	} else {
		err = s.db.QueryRow(ctx,
			fmt.Sprintf("SELECT count(*) FROM %s", s.table)).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return int(count), nil
}

// Delete removes a document by ID.
func (s *Store) Delete(ctx context.Context, docID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.table)
	if _, err := s.db.Exec(ctx, query, docID); err != nil {
		return fmt.Errorf("deleting document %q: %w", docID, err)
	}
	s.logger.Debug("document deleted", "id", docID)
	return nil
}

// DeleteBySource removes every document that came from the given
// source id, used to drop stale chunks before re-ingesting a source.
func (s *Store) DeleteBySource(ctx context.Context, sourceID string) (int, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE metadata->>'source_id' = $1", s.table)
	tag, err := s.db.Exec(ctx, query, sourceID)
	if err != nil {
		return 0, fmt.Errorf("deleting documents of source %q: %w", sourceID, err)
	}
	deleted := int(tag.RowsAffected())
	s.logger.Info("source documents deleted", "source_id", sourceID, "deleted", deleted)
	return deleted, nil
}

// embed runs the embedder on one text and returns a pgvector value.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(text)}},
		},
	})
	if err != nil {
		return pgvector.Vector{}, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("embedder returned no embedding")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}
