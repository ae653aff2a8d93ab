package api

import (
	"context"
	"net/http"
	"time"

	"github.com/cesarhb/kb-engine-playground/internal/knowledge"
	"github.com/cesarhb/kb-engine-playground/internal/log"
)

// maxSearchQueryLength is the maximum allowed search query length in bytes.
const maxSearchQueryLength = 1000

// maxSearchResults caps the k query parameter.
const maxSearchResults = 20

// Searcher runs similarity search against the knowledge base.
// *knowledge.Store satisfies this.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// searchHandler serves GET /search.
type searchHandler struct {
	store  Searcher
	logger log.Logger
}

// searchResultItem is the JSON representation of one search hit.
type searchResultItem struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	Similarity float64        `json:"similarity"`
	CreatedAt  string         `json:"createdAt"`
}

// search handles GET /search?q=...&k=4.
func (h *searchHandler) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing_query", "query parameter 'q' is required", h.logger)
		return
	}
	if len(query) > maxSearchQueryLength {
		writeError(w, http.StatusBadRequest, "query_too_long", "query must be 1000 characters or fewer", h.logger)
		return
	}

	k := parseIntParam(r, "k", knowledge.DefaultTopK)
	if k < 1 || k > maxSearchResults {
		writeError(w, http.StatusBadRequest, "invalid_k", "k must be between 1 and 20", h.logger)
		return
	}

	results, err := h.store.Search(r.Context(), query, knowledge.WithTopK(k))
	if err != nil {
		h.logger.Error("searching knowledge base", "error", err, "query_len", len(query))
		writeError(w, http.StatusInternalServerError, "search_failed", "failed to search knowledge base", h.logger)
		return
	}

	items := make([]searchResultItem, len(results))
	for i, res := range results {
		items[i] = searchResultItem{
			ID:         res.ID,
			Content:    res.Content,
			Metadata:   res.Metadata,
			Similarity: res.Similarity,
			CreatedAt:  res.CreatedAt.Format(time.RFC3339),
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": len(items),
	}, h.logger)
}
