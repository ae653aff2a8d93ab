// Package agent implements the question answering agent on top of
// Genkit: retrieval through the knowledge base, context-stuffed
// generation, and a tool-calling variant where the model decides when
// to search.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/cesarhb/kb-engine-playground/internal/log"
)

// SearchToolName is the Genkit tool name for knowledge base search.
const SearchToolName = "search_knowledge_base"

const (
	// maxToolTurns bounds the generate/tool-call loop.
	maxToolTurns = 3

	// maxTopK caps how many documents a single retrieval may request.
	maxTopK = 10
)

const systemPrompt = `You are a documentation assistant. Answer questions using the
provided context from the knowledge base. Quote or paraphrase the context rather
than inventing details. If the context does not contain the answer, say so
plainly instead of guessing.`

const toolSystemPrompt = `You are a documentation assistant with access to a
knowledge base search tool. Call ` + SearchToolName + ` to look up relevant
documentation before answering. If the search results do not contain the
answer, say so plainly instead of guessing.`

// SearchInput is the input schema of the knowledge base search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema_description:"The search query string"`
	TopK  int    `json:"topK,omitempty" jsonschema_description:"Maximum results to return (1-10)"`
}

// Config holds the dependencies of an Agent.
type Config struct {
	Genkit      *genkit.Genkit
	Retriever   ai.Retriever
	ModelName   string // fully qualified, e.g. "ollama/llama3.2"
	Temperature float32
	TopK        int // documents per retrieval, default 4
	Logger      log.Logger

	// RateLimit throttles generate calls; nil disables throttling.
	RateLimit *rate.Limiter

	// Retry overrides the default retry policy when non-zero.
	Retry RetryConfig
}

// Agent answers questions over the knowledge base.
type Agent struct {
	g           *genkit.Genkit
	retriever   ai.Retriever
	modelName   string
	temperature float32
	topK        int
	retryConfig RetryConfig
	rateLimiter *rate.Limiter
	logger      log.Logger
	searchTool  ai.Tool
}

// New creates an Agent and registers its search tool with Genkit.
func New(cfg Config) (*Agent, error) {
	if cfg.Genkit == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 4
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}

	a := &Agent{
		g:           cfg.Genkit,
		retriever:   cfg.Retriever,
		modelName:   cfg.ModelName,
		temperature: cfg.Temperature,
		topK:        cfg.TopK,
		retryConfig: cfg.Retry,
		rateLimiter: cfg.RateLimit,
		logger:      cfg.Logger,
	}

	a.searchTool = genkit.DefineTool(cfg.Genkit, SearchToolName,
		"Search the documentation knowledge base using semantic similarity. "+
			"Returns the most relevant documentation excerpts for the query. "+
			"Use this before answering questions about the indexed documentation. "+
			"Default topK: 4. Maximum topK: 10.",
		a.searchKnowledgeBase)

	return a, nil
}

// searchKnowledgeBase is the tool handler behind SearchToolName.
func (a *Agent) searchKnowledgeBase(ctx *ai.ToolContext, input SearchInput) (map[string]any, error) {
	topK := input.TopK
	if topK <= 0 {
		topK = a.topK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	a.logger.Info("knowledge base search", "query", input.Query, "top_k", topK)

	docs, err := a.retrieve(ctx, input.Query, topK)
	if err != nil {
		// Tool errors go back to the model as data so it can tell the
		// user the search failed instead of the whole turn erroring.
		a.logger.Warn("knowledge base search failed", "query", input.Query, "error", err)
		return map[string]any{"error": fmt.Sprintf("search failed: %v", err)}, nil
	}

	excerpts := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		excerpts = append(excerpts, map[string]any{
			"content":  documentText(doc),
			"metadata": doc.Metadata,
		})
	}
	return map[string]any{
		"query":        input.Query,
		"result_count": len(excerpts),
		"results":      excerpts,
	}, nil
}

// Answer runs the classic RAG path: retrieve context for the question,
// then generate with the context stuffed into the prompt.
func (a *Agent) Answer(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("question must not be empty")
	}

	docs, err := a.retrieve(ctx, question, a.topK)
	if err != nil {
		return "", fmt.Errorf("retrieving context: %w", err)
	}
	a.logger.Debug("context retrieved", "question", question, "documents", len(docs))

	resp, err := a.generate(ctx,
		ai.WithModelName(a.modelName),
		ai.WithSystem(systemPrompt),
		ai.WithPrompt(buildContextPrompt(question, docs)),
		ai.WithConfig(&ai.GenerationCommonConfig{Temperature: float64(a.temperature)}),
	)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// AnswerWithTools lets the model drive retrieval through the search
// tool, with a bounded number of tool turns.
func (a *Agent) AnswerWithTools(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("question must not be empty")
	}

	resp, err := a.generate(ctx,
		ai.WithModelName(a.modelName),
		ai.WithSystem(toolSystemPrompt),
		ai.WithPrompt(question),
		ai.WithTools(a.searchTool),
		ai.WithMaxTurns(maxToolTurns),
		ai.WithConfig(&ai.GenerationCommonConfig{Temperature: float64(a.temperature)}),
	)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// retrieve fetches topK documents for the query.
func (a *Agent) retrieve(ctx context.Context, query string, topK int) ([]*ai.Document, error) {
	resp, err := a.retriever.Retrieve(ctx, &ai.RetrieverRequest{
		Query:   ai.DocumentFromText(query, nil),
		Options: map[string]any{"k": topK},
	})
	if err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

// buildContextPrompt assembles the numbered context block and the
// question into one prompt.
func buildContextPrompt(question string, docs []*ai.Document) string {
	var sb strings.Builder
	if len(docs) == 0 {
		sb.WriteString("No relevant context was found in the knowledge base.\n\n")
	} else {
		sb.WriteString("Context from the knowledge base:\n\n")
		for i, doc := range docs {
			fmt.Fprintf(&sb, "[%d] %s\n\n", i+1, strings.TrimSpace(documentText(doc)))
		}
	}
	sb.WriteString("Question: ")
	sb.WriteString(question)
	return sb.String()
}

// documentText concatenates the text parts of a document.
func documentText(doc *ai.Document) string {
	var sb strings.Builder
	for _, part := range doc.Content {
		sb.WriteString(part.Text)
	}
	return sb.String()
}
