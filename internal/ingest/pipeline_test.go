package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/cesarhb/kb-engine-playground/internal/source"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubLoader struct {
	docs []source.Document
	err  error
}

func (l *stubLoader) LoadAll(_ context.Context, _ []source.Config) ([]source.Document, error) {
	return l.docs, l.err
}

type recordingIndexer struct {
	batches [][]*ai.Document
	err     error
}

func (r *recordingIndexer) Index(_ context.Context, docs []*ai.Document) error {
	if r.err != nil {
		return r.err
	}
	r.batches = append(r.batches, docs)
	return nil
}

func docText(d *ai.Document) string {
	var sb strings.Builder
	for _, p := range d.Content {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

func TestPipelineRun(t *testing.T) {
	loader := &stubLoader{docs: []source.Document{
		{
			Content:  strings.Repeat("useful sentence about vectors. ", 40),
			Metadata: map[string]any{"source_id": "blog", "source_type": "url"},
		},
		{
			Content:  "# Readme\n\nshort document",
			Metadata: map[string]any{"source_id": "repo", "file_extension": ".md"},
		},
	}}
	indexer := &recordingIndexer{}

	p := NewPipeline(loader, indexer, 200, 20, nil)
	stats, err := p.Run(context.Background(), []source.Config{{ID: "blog"}, {ID: "repo"}})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Sources)
	assert.Equal(t, 2, stats.Documents)
	assert.Greater(t, stats.Chunks, 2)
	assert.Equal(t, stats.Batches, len(indexer.batches))

	var indexed int
	for _, batch := range indexer.batches {
		assert.LessOrEqual(t, len(batch), indexBatchSize)
		indexed += len(batch)
		for _, d := range batch {
			assert.LessOrEqual(t, runeLen(docText(d)), 200)
			assert.NotEmpty(t, d.Metadata["source_id"])
			assert.Contains(t, d.Metadata, "chunk")
		}
	}
	assert.Equal(t, stats.Chunks, indexed)
}

func TestPipelineBatchesLargeRuns(t *testing.T) {
	// Enough content for well over one batch of chunks.
	loader := &stubLoader{docs: []source.Document{{
		Content:  strings.Repeat("many words to split apart. ", 1500),
		Metadata: map[string]any{"source_id": "big"},
	}}}
	indexer := &recordingIndexer{}

	p := NewPipeline(loader, indexer, 100, 0, nil)
	stats, err := p.Run(context.Background(), []source.Config{{ID: "big"}})
	require.NoError(t, err)

	assert.Greater(t, stats.Chunks, indexBatchSize)
	assert.Greater(t, stats.Batches, 1)
	for i, batch := range indexer.batches[:len(indexer.batches)-1] {
		assert.Len(t, batch, indexBatchSize, "batch %d should be full", i)
	}
}

func TestPipelineLoaderErrorAborts(t *testing.T) {
	loader := &stubLoader{err: errors.New("fetch failed")}
	indexer := &recordingIndexer{}

	p := NewPipeline(loader, indexer, 200, 20, nil)
	_, err := p.Run(context.Background(), []source.Config{{ID: "x"}})
	assert.ErrorContains(t, err, "fetch failed")
	assert.Empty(t, indexer.batches)
}

func TestPipelineIndexerErrorAborts(t *testing.T) {
	loader := &stubLoader{docs: []source.Document{{
		Content:  "some text to index",
		Metadata: map[string]any{"source_id": "x"},
	}}}
	indexer := &recordingIndexer{err: errors.New("db unavailable")}

	p := NewPipeline(loader, indexer, 200, 20, nil)
	_, err := p.Run(context.Background(), []source.Config{{ID: "x"}})
	assert.ErrorContains(t, err, "db unavailable")
}

func TestPipelineOversizeContentStaysBounded(t *testing.T) {
	loader := &stubLoader{docs: []source.Document{{
		// An unbreakable run longer than several chunks.
		Content:  strings.Repeat("Z", 1700),
		Metadata: map[string]any{"source_id": "blob"},
	}}}
	indexer := &recordingIndexer{}

	p := NewPipeline(loader, indexer, 500, 50, nil)
	stats, err := p.Run(context.Background(), []source.Config{{ID: "blob"}})
	require.NoError(t, err)
	require.Equal(t, 4, stats.Chunks)

	var reassembled strings.Builder
	for _, batch := range indexer.batches {
		for _, d := range batch {
			text := docText(d)
			assert.LessOrEqual(t, runeLen(text), 500)
			reassembled.WriteString(text)
		}
	}
	assert.Equal(t, strings.Repeat("Z", 1700), reassembled.String())
}

func TestPipelineEmptySources(t *testing.T) {
	loader := &stubLoader{}
	indexer := &recordingIndexer{}

	p := NewPipeline(loader, indexer, 200, 20, nil)
	stats, err := p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Chunks)
	assert.Equal(t, 0, stats.Batches)
}
