// Package rag defines the documents table schema constants and the
// Genkit retriever over the knowledge store.
package rag

import (
	"context"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/postgresql"

	"github.com/cesarhb/kb-engine-playground/internal/knowledge"
)

// Table schema constants for the Genkit PostgreSQL plugin. These match
// the documents table in db/migrations.
const (
	DocumentsSchemaName   = "public"
	DocumentsIDColumn     = "id"
	DocumentsContentCol   = "content"
	DocumentsEmbeddingCol = "embedding"
	DocumentsMetadataCol  = "metadata"
)

// NewDocStoreConfig creates a postgresql.Config for the documents
// table. One factory keeps production and test wiring identical.
func NewDocStoreConfig(table string, embedder ai.Embedder) *postgresql.Config {
	return &postgresql.Config{
		TableName:          table,
		SchemaName:         DocumentsSchemaName,
		IDColumn:           DocumentsIDColumn,
		ContentColumn:      DocumentsContentCol,
		EmbeddingColumn:    DocumentsEmbeddingCol,
		MetadataJSONColumn: DocumentsMetadataCol,
		MetadataColumns:    []string{"source_type"},
		Embedder:           embedder,
	}
}

// Retriever bridges knowledge.Store to the Genkit ai.Retriever
// interface.
type Retriever struct {
	store *knowledge.Store
}

// New creates a Retriever over the given knowledge store.
func New(store *knowledge.Store) *Retriever {
	return &Retriever{store: store}
}

// Define registers a Genkit retriever that searches the whole
// documents table. Callers may pass {"k": n} in request options to
// override the result count.
func (r *Retriever) Define(g *genkit.Genkit, name string) ai.Retriever {
	return genkit.DefineRetriever(
		g, name, nil,
		func(ctx context.Context, req *ai.RetrieverRequest) (*ai.RetrieverResponse, error) {
			queryText := extractQueryText(req)
			topK := extractTopK(req, knowledge.DefaultTopK)

			results, err := r.store.Search(ctx, queryText, knowledge.WithTopK(topK))
			if err != nil {
				return nil, err
			}

			return &ai.RetrieverResponse{
				Documents: convertToGenkitDocuments(results),
			}, nil
		},
	)
}

// extractQueryText extracts text from RetrieverRequest.Query.
func extractQueryText(req *ai.RetrieverRequest) string {
	if req.Query != nil && len(req.Query.Content) > 0 {
		return req.Query.Content[0].Text
	}
	return ""
}

// extractTopK reads "k" from request options, accepting the numeric
// types JSON decoding may produce. Values outside [1, 20] fall back to
// defaultK.
func extractTopK(req *ai.RetrieverRequest, defaultK int) int {
	opts, ok := req.Options.(map[string]any)
	if !ok {
		return defaultK
	}
	k, exists := opts["k"]
	if !exists {
		return defaultK
	}

	var kInt int
	switch v := k.(type) {
	case int:
		kInt = v
	case int32:
		kInt = int(v)
	case int64:
		kInt = int(v)
	case float64:
		kInt = int(v)
	case float32:
		kInt = int(v)
	default:
		return defaultK
	}

	if kInt < 1 || kInt > 20 {
		return defaultK
	}
	return kInt
}

// convertToGenkitDocuments converts search results to ai.Documents,
// carrying the similarity score in metadata.
func convertToGenkitDocuments(results []knowledge.Result) []*ai.Document {
	docs := make([]*ai.Document, len(results))
	for i, result := range results {
		metadata := make(map[string]any, len(result.Metadata)+1)
		for k, v := range result.Metadata {
			metadata[k] = v
		}
		metadata["similarity"] = result.Similarity
		docs[i] = ai.DocumentFromText(result.Content, metadata)
	}
	return docs
}
