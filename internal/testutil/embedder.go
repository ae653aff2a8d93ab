package testutil

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"

	"github.com/cesarhb/kb-engine-playground/internal/config"
)

// StubEmbedder is a deterministic ai.Embedder for tests that need real
// vectors without a model server. Identical inputs always produce
// identical embeddings, so a document is its own nearest neighbor.
type StubEmbedder struct {
	Dimensions int
}

// NewStubEmbedder creates a stub embedder with the production vector
// dimensionality.
func NewStubEmbedder() *StubEmbedder {
	return &StubEmbedder{Dimensions: config.EmbedderDimensions}
}

func (e *StubEmbedder) Name() string { return "testutil/stub-embedder" }

func (e *StubEmbedder) Register(api.Registry) {}

// Embed produces a unit-length vector seeded from the input text.
func (e *StubEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	resp := &ai.EmbedResponse{}
	for _, doc := range req.Input {
		var text string
		for _, part := range doc.Content {
			text += part.Text
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{
			Embedding: e.vectorFor(text),
		})
	}
	return resp, nil
}

// vectorFor derives a normalized pseudo-random vector from text.
func (e *StubEmbedder) vectorFor(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, e.Dimensions)
	var norm float64
	for i := range vec {
		// xorshift64 keeps the sequence deterministic per seed.
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		v := float64(int64(seed%2000)-1000) / 1000.0
		vec[i] = float32(v)
		norm += v * v
	}

	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
