package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"

	"github.com/cesarhb/kb-engine-playground/internal/log"
	"github.com/cesarhb/kb-engine-playground/internal/source"
)

const (
	// indexBatchSize bounds one embed-and-store round trip.
	indexBatchSize = 50

	// heartbeatInterval is how often a progress line is emitted while
	// a long phase (fetching, embedding) is running.
	heartbeatInterval = 15 * time.Second
)

// SourceLoader fetches documents for configured sources.
// *source.Loader satisfies this.
type SourceLoader interface {
	LoadAll(ctx context.Context, sources []source.Config) ([]source.Document, error)
}

// Indexer embeds and stores documents. The Genkit PostgreSQL DocStore
// satisfies this.
type Indexer interface {
	Index(ctx context.Context, docs []*ai.Document) error
}

// Chunk is one bounded piece of a loaded document, ready to embed.
type Chunk struct {
	Content  string
	Metadata map[string]any
}

// Stats summarizes a pipeline run.
type Stats struct {
	Sources   int
	Documents int
	Chunks    int
	Batches   int
	Duration  time.Duration
}

// Pipeline runs the full ingestion: load sources, split into chunks
// within the embedder limit, embed and index in batches. Any error
// aborts the run; a partial index is repaired by re-running.
type Pipeline struct {
	loader   SourceLoader
	indexer  Indexer
	maxChars int
	overlap  int
	logger   log.Logger
}

// NewPipeline creates a Pipeline. A nil logger discards log output.
func NewPipeline(loader SourceLoader, indexer Indexer, maxChars, overlap int, logger log.Logger) *Pipeline {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Pipeline{
		loader:   loader,
		indexer:  indexer,
		maxChars: maxChars,
		overlap:  overlap,
		logger:   logger,
	}
}

// Run executes the pipeline over the given sources.
func (p *Pipeline) Run(ctx context.Context, sources []source.Config) (*Stats, error) {
	start := time.Now()
	stop := p.startHeartbeat(start)
	defer stop()

	p.logger.Info("ingestion started",
		"sources", len(sources), "max_chars", p.maxChars, "overlap", p.overlap)

	docs, err := p.loader.LoadAll(ctx, sources)
	if err != nil {
		return nil, fmt.Errorf("loading sources: %w", err)
	}
	p.logger.Info("documents loaded", "documents", len(docs))

	var chunks []Chunk
	for _, doc := range docs {
		docChunks, err := p.splitDocument(doc)
		if err != nil {
			return nil, fmt.Errorf("splitting document: %w", err)
		}
		chunks = append(chunks, docChunks...)
	}
	p.logger.Info("documents split", "chunks", len(chunks))

	batches, err := p.indexChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Sources:   len(sources),
		Documents: len(docs),
		Chunks:    len(chunks),
		Batches:   batches,
		Duration:  time.Since(start),
	}
	p.logger.Info("ingestion finished",
		"documents", stats.Documents, "chunks", stats.Chunks,
		"batches", stats.Batches, "duration", stats.Duration)
	return stats, nil
}

// splitDocument splits one document with the separator set for its
// file extension, then enforces the hard chunk-size bound.
func (p *Pipeline) splitDocument(doc source.Document) ([]Chunk, error) {
	ext, _ := doc.Metadata["file_extension"].(string)
	splitter := NewSplitter(p.maxChars, p.overlap, ext)

	texts, err := ResplitOversize(splitter.Split(doc.Content), p.maxChars)
	if err != nil {
		return nil, err
	}

	// An oversize chunk reaching the embedder would be silently
	// truncated there, so fail here instead.
	for i, text := range texts {
		if runeLen(text) > p.maxChars {
			return nil, fmt.Errorf("chunk %d has %d chars, limit %d", i, runeLen(text), p.maxChars)
		}
	}

	chunks := make([]Chunk, 0, len(texts))
	for i, text := range texts {
		md := make(map[string]any, len(doc.Metadata)+1)
		for k, v := range doc.Metadata {
			md[k] = v
		}
		md["chunk"] = i
		chunks = append(chunks, Chunk{Content: text, Metadata: md})
	}
	return chunks, nil
}

// indexChunks embeds and stores chunks in fixed-size batches.
func (p *Pipeline) indexChunks(ctx context.Context, chunks []Chunk) (batches int, err error) {
	for start := 0; start < len(chunks); start += indexBatchSize {
		end := start + indexBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		batch := make([]*ai.Document, 0, end-start)
		for _, c := range chunks[start:end] {
			batch = append(batch, ai.DocumentFromText(c.Content, c.Metadata))
		}

		if err := p.indexer.Index(ctx, batch); err != nil {
			return batches, fmt.Errorf("indexing batch %d-%d: %w", start, end, err)
		}

		batches++
		p.logger.Info("batch indexed",
			"batch", batches, "indexed", end, "total", len(chunks))
	}
	return batches, nil
}

// startHeartbeat emits a progress line every heartbeatInterval until
// the returned stop function is called. Long fetch or embed phases
// would otherwise look like a hang in CronJob logs.
func (p *Pipeline) startHeartbeat(start time.Time) (stop func()) {
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				p.logger.Info("ingestion in progress",
					"elapsed", time.Since(start).Round(time.Second))
			}
		}
	}()

	return func() {
		close(done)
		<-finished
	}
}
